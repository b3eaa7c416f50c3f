package judge

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"ojcore/internal/sandbox"
	"ojcore/pkg/utils/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// HealthConfig tunes the periodic sandbox self-test.
type HealthConfig struct {
	Schedule string `yaml:"schedule"`
	// FailureThreshold is how many consecutive self-test failures mark
	// the daemon unready.
	FailureThreshold int `yaml:"failureThreshold"`
}

func (c HealthConfig) normalized() HealthConfig {
	if c.Schedule == "" {
		c.Schedule = "@every 30s"
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	return c
}

// HealthChecker probes the sandbox with a trivial run so a broken helper
// or kernel setup is detected before real submissions hit it.
type HealthChecker struct {
	cfg      HealthConfig
	runner   sandbox.Runner
	workRoot string
	cron     *cron.Cron

	failures atomic.Int32
	ready    atomic.Bool
}

// NewHealthChecker creates the sandbox health checker.
func NewHealthChecker(cfg HealthConfig, runner sandbox.Runner, workRoot string) *HealthChecker {
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	h := &HealthChecker{
		cfg:      cfg.normalized(),
		runner:   runner,
		workRoot: workRoot,
		cron:     cron.New(),
	}
	h.ready.Store(true)
	return h
}

// Start runs one immediate probe and schedules the periodic ones.
func (h *HealthChecker) Start(ctx context.Context) error {
	h.Check(ctx)
	if _, err := h.cron.AddFunc(h.cfg.Schedule, func() { h.Check(context.Background()) }); err != nil {
		return err
	}
	h.cron.Start()
	return nil
}

// Stop stops the schedule.
func (h *HealthChecker) Stop() {
	<-h.cron.Stop().Done()
}

// Ready reports whether the sandbox passed its recent self-tests.
func (h *HealthChecker) Ready() bool {
	return h.ready.Load()
}

// Check runs one self-test and updates readiness.
func (h *HealthChecker) Check(ctx context.Context) {
	if err := h.probe(ctx); err != nil {
		failures := h.failures.Add(1)
		logger.Warn(ctx, "sandbox self-test failed",
			zap.Int32("consecutive_failures", failures), zap.Error(err))
		if int(failures) >= h.cfg.FailureThreshold {
			h.ready.Store(false)
		}
		return
	}
	h.failures.Store(0)
	h.ready.Store(true)
}

func (h *HealthChecker) probe(ctx context.Context) error {
	workDir, err := os.MkdirTemp(h.workRoot, "healthcheck-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.runner.Run(ctx, sandbox.RunSpec{
		WorkDir: workDir,
		Cmd:     []string{"/bin/echo", "ok"},
		Limits: sandbox.Limits{
			CPUTimeMs:  1000,
			WallTimeMs: 5000,
			MemoryMB:   64,
			StackMB:    16,
			OutputMB:   1,
			PIDs:       8,
		},
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("self-test exited %d: %s", res.ExitCode, res.Stderr)
	}
	return nil
}
