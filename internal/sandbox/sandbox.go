// Package sandbox executes one command inside a disposable, resource-limited
// environment and reports the raw outcome. Exit-code mapping onto verdicts is
// the language adapter's concern, not the runner's.
package sandbox

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable marks failures to create or attach the sandbox itself,
// as opposed to failures of the judged program. Only this class of error
// is retryable; it surfaces as verdict SE when retries are exhausted.
var ErrUnavailable = errors.New("sandbox unavailable")

// Unavailable wraps err as a sandbox-unavailable error.
func Unavailable(err error) error {
	if err == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// IsUnavailable reports whether err is a sandbox-unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Limits describes hard caps enforced on one run.
type Limits struct {
	// CPUTimeMs caps CPU time; the wall clock cap is derived from it.
	CPUTimeMs int64
	// WallTimeMs is enforced externally and honored even on hung processes.
	WallTimeMs int64
	MemoryMB   int64
	StackMB    int64
	OutputMB   int64
	// PIDs blocks fork bombs; capped at 64.
	PIDs int64
}

// MaxPIDs is the hard ceiling on the PID cap.
const MaxPIDs = 64

// RunSpec describes one sandboxed command.
type RunSpec struct {
	// WorkDir is the private writable directory for this run. Deployment
	// mounts it as a bounded tmpfs; everything else is read-only.
	WorkDir string
	Cmd     []string
	Env     []string
	// Stdin is piped into the process.
	Stdin  string
	Limits Limits
}

// RunResult is the raw outcome of one run.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimeMs   int64
	MemoryKB int64
	// TimedOut is set when the wall-clock timeout killed the run,
	// regardless of the reported exit code.
	TimedOut  bool
	OomKilled bool
}

// Runner executes RunSpecs. Implementations are stateless; each call is
// one disposable sandbox.
type Runner interface {
	Run(ctx context.Context, spec RunSpec) (RunResult, error)
}

// OomExitThreshold: an out-of-memory kill is reported signal-style,
// 128 + SIGKILL.
const OomExitThreshold = 137

// xcpuExitCode is 128 + SIGXCPU, delivered when the soft RLIMIT_CPU cap
// fires before the wall timer.
const xcpuExitCode = 152

// classifyResult folds the limit-derived signals into the raw result.
// The kernel's RLIMIT_CPU kill arrives long before the wall timer and
// reports signal-style exit codes just like an OOM kill, so exhausted
// CPU time must be classified as a timeout before any OOM promotion.
func classifyResult(res RunResult, limits Limits) RunResult {
	if res.ExitCode == xcpuExitCode {
		res.TimedOut = true
	}
	if !res.TimedOut && limits.CPUTimeMs > 0 && res.TimeMs >= limits.CPUTimeMs {
		res.TimedOut = true
	}
	if !res.TimedOut && res.ExitCode >= OomExitThreshold {
		res.OomKilled = true
	}
	return res
}

func validateSpec(spec RunSpec) error {
	if len(spec.Cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	if spec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	if spec.Limits.PIDs > MaxPIDs {
		return fmt.Errorf("pid limit %d exceeds cap %d", spec.Limits.PIDs, MaxPIDs)
	}
	return nil
}
