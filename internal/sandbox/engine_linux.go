//go:build linux

package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"ojcore/internal/sandbox/security"
	"ojcore/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultCaptureMaxBytes int64 = 64 * 1024

// Config holds engine settings.
type Config struct {
	// HelperPath is the sandbox-init binary applying rlimits and the
	// seccomp deny-list inside the child before exec.
	HelperPath string `yaml:"helperPath"`
	// EnableNamespaces turns on mount/pid/net namespace isolation.
	// Disabled in unprivileged test environments.
	EnableNamespaces bool `yaml:"enableNamespaces"`
	// EnableSeccomp loads the syscall deny-list in the child.
	EnableSeccomp bool `yaml:"enableSeccomp"`
	// CaptureMaxBytes bounds captured stdout/stderr; beyond it output
	// is truncated, not failed.
	CaptureMaxBytes int64 `yaml:"captureMaxBytes"`
}

type linuxEngine struct {
	cfg     Config
	profile security.Profile
}

// NewEngine creates the Linux sandbox engine.
func NewEngine(cfg Config) (Runner, error) {
	if cfg.HelperPath == "" {
		cfg.HelperPath = "sandbox-init"
	}
	if cfg.CaptureMaxBytes <= 0 {
		cfg.CaptureMaxBytes = defaultCaptureMaxBytes
	}
	profile := security.DefaultProfile()
	profile.EnableSeccomp = cfg.EnableSeccomp
	return &linuxEngine{cfg: cfg, profile: profile}, nil
}

// initRequest is the wire format between the engine and sandbox-init.
type initRequest struct {
	WorkDir       string          `json:"work_dir"`
	Cmd           []string        `json:"cmd"`
	Env           []string        `json:"env"`
	StdinPath     string          `json:"stdin_path"`
	StdoutPath    string          `json:"stdout_path"`
	StderrPath    string          `json:"stderr_path"`
	Limits        Limits          `json:"limits"`
	EnableSeccomp bool            `json:"enable_seccomp"`
	Denied        []string        `json:"denied_syscalls"`
	Profile       security.Profile `json:"profile"`
}

func (e *linuxEngine) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	if err := validateSpec(spec); err != nil {
		return RunResult{}, err
	}

	stdinPath := filepath.Join(spec.WorkDir, ".stdin")
	stdoutPath := filepath.Join(spec.WorkDir, ".stdout")
	stderrPath := filepath.Join(spec.WorkDir, ".stderr")
	if err := os.WriteFile(stdinPath, []byte(spec.Stdin), 0644); err != nil {
		return RunResult{}, Unavailable(fmt.Errorf("write stdin: %w", err))
	}

	req := initRequest{
		WorkDir:       spec.WorkDir,
		Cmd:           spec.Cmd,
		Env:           spec.Env,
		StdinPath:     stdinPath,
		StdoutPath:    stdoutPath,
		StderrPath:    stderrPath,
		Limits:        spec.Limits,
		EnableSeccomp: e.cfg.EnableSeccomp,
		Denied:        security.DeniedSyscalls,
		Profile:       e.profile,
	}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return RunResult{}, Unavailable(fmt.Errorf("encode init request: %w", err))
	}

	cmd := exec.CommandContext(ctx, e.cfg.HelperPath)
	cmd.SysProcAttr = e.buildSysProcAttr()
	cmd.Stdin = bytes.NewReader(reqBody)
	var helperStderr bytes.Buffer
	cmd.Stderr = &helperStderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return RunResult{}, Unavailable(fmt.Errorf("start helper: %w", err))
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		wallLimit := time.Duration(spec.Limits.WallTimeMs) * time.Millisecond
		var wallTimer <-chan time.Time
		if wallLimit > 0 {
			wallTimer = time.After(wallLimit)
		}
		select {
		case <-ctx.Done():
			killProcessGroup(cmd.Process.Pid)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	if ctx.Err() != nil {
		return RunResult{}, Unavailable(ctx.Err())
	}
	if waitErr != nil && cmd.ProcessState == nil {
		return RunResult{}, Unavailable(waitErr)
	}
	if waitErr != nil && helperStderr.Len() > 0 {
		logger.Warn(ctx, "sandbox helper stderr", zap.String("stderr", helperStderr.String()))
	}

	res := RunResult{
		ExitCode: exitCode(waitErr, cmd.ProcessState),
		Stdout:   readLimitedFile(stdoutPath, e.cfg.CaptureMaxBytes),
		Stderr:   readLimitedFile(stderrPath, e.cfg.CaptureMaxBytes),
		TimeMs:   cpuTimeMs(cmd.ProcessState),
		MemoryKB: peakMemoryKB(cmd.ProcessState),
		TimedOut: timedOut.Load(),
	}
	if res.TimeMs == 0 {
		res.TimeMs = time.Since(start).Milliseconds()
	}
	return classifyResult(res, spec.Limits), nil
}

func (e *linuxEngine) buildSysProcAttr() *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if !e.cfg.EnableNamespaces {
		return attr
	}
	cloneFlags := uintptr(syscall.CLONE_NEWNS | syscall.CLONE_NEWPID | syscall.CLONE_NEWUTS | syscall.CLONE_NEWIPC)
	if e.profile.DisableNetwork {
		cloneFlags |= syscall.CLONE_NEWNET
	}
	attr.Cloneflags = cloneFlags
	return attr
}

func killProcessGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func exitCode(waitErr error, state *os.ProcessState) int {
	if state != nil {
		if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return state.ExitCode()
	}
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func cpuTimeMs(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	return (state.UserTime() + state.SystemTime()).Milliseconds()
}

func peakMemoryKB(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	if rusage, ok := state.SysUsage().(*syscall.Rusage); ok {
		return rusage.Maxrss
	}
	return 0
}

func readLimitedFile(path string, maxBytes int64) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()
	buf := make([]byte, maxBytes)
	n, _ := file.Read(buf)
	return string(buf[:n])
}
