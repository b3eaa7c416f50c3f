//go:build linux && cgo

// sandbox-init runs inside the sandbox as pid 1 of the judged process
// tree. It reads one init request from stdin, applies resource limits,
// IO redirection and the seccomp deny-list, then execs the target
// command. It must stay minimal: everything here runs before isolation
// is complete.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	seccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

type limits struct {
	CPUTimeMs  int64 `json:"CPUTimeMs"`
	WallTimeMs int64 `json:"WallTimeMs"`
	MemoryMB   int64 `json:"MemoryMB"`
	StackMB    int64 `json:"StackMB"`
	OutputMB   int64 `json:"OutputMB"`
	PIDs       int64 `json:"PIDs"`
}

type initRequest struct {
	WorkDir       string   `json:"work_dir"`
	Cmd           []string `json:"cmd"`
	Env           []string `json:"env"`
	StdinPath     string   `json:"stdin_path"`
	StdoutPath    string   `json:"stdout_path"`
	StderrPath    string   `json:"stderr_path"`
	Limits        limits   `json:"limits"`
	EnableSeccomp bool     `json:"enable_seccomp"`
	Denied        []string `json:"denied_syscalls"`
}

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run() error {
	req, err := decodeRequest(os.Stdin)
	if err != nil {
		return err
	}
	if len(req.Cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	if req.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}

	if err := os.Chdir(req.WorkDir); err != nil {
		return fmt.Errorf("chdir workdir: %w", err)
	}
	if err := applyRlimits(req.Limits); err != nil {
		return err
	}
	if err := redirectIO(req); err != nil {
		return err
	}

	env := buildEnv(req.Env)
	os.Clearenv()
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if err := os.Setenv(parts[0], parts[1]); err != nil {
			return fmt.Errorf("set env: %w", err)
		}
	}

	cmdPath, err := exec.LookPath(req.Cmd[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}

	// Seccomp goes last: after it loads, even this process is restricted.
	if req.EnableSeccomp {
		if err := applySeccomp(req.Denied); err != nil {
			return err
		}
	}
	return unix.Exec(cmdPath, req.Cmd, env)
}

func decodeRequest(r io.Reader) (initRequest, error) {
	var req initRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return initRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func applyRlimits(l limits) error {
	if l.CPUTimeMs > 0 {
		// Soft cap delivers SIGXCPU so the parent can tell CPU
		// exhaustion from an OOM kill; the hard cap one second later is
		// the SIGKILL backstop.
		seconds := uint64((l.CPUTimeMs + 999) / 1000)
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: seconds, Max: seconds + 1}); err != nil {
			return fmt.Errorf("set rlimit cpu: %w", err)
		}
	}
	if l.MemoryMB > 0 {
		bytes := uint64(l.MemoryMB * 1024 * 1024)
		if err := unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: bytes, Max: bytes}); err != nil {
			return fmt.Errorf("set rlimit as: %w", err)
		}
	}
	if l.OutputMB > 0 {
		bytes := uint64(l.OutputMB * 1024 * 1024)
		if err := unix.Setrlimit(unix.RLIMIT_FSIZE, &unix.Rlimit{Cur: bytes, Max: bytes}); err != nil {
			return fmt.Errorf("set rlimit fsize: %w", err)
		}
	}
	if l.StackMB > 0 {
		bytes := uint64(l.StackMB * 1024 * 1024)
		if err := unix.Setrlimit(unix.RLIMIT_STACK, &unix.Rlimit{Cur: bytes, Max: bytes}); err != nil {
			return fmt.Errorf("set rlimit stack: %w", err)
		}
	}
	if l.PIDs > 0 {
		val := uint64(l.PIDs)
		if err := unix.Setrlimit(unix.RLIMIT_NPROC, &unix.Rlimit{Cur: val, Max: val}); err != nil {
			return fmt.Errorf("set rlimit nproc: %w", err)
		}
	}
	return nil
}

func redirectIO(req initRequest) error {
	stdinPath := req.StdinPath
	if stdinPath == "" {
		stdinPath = "/dev/null"
	}
	stdoutPath := req.StdoutPath
	if stdoutPath == "" {
		stdoutPath = "/dev/null"
	}
	stderrPath := req.StderrPath
	if stderrPath == "" {
		stderrPath = "/dev/null"
	}
	stdinFile, err := os.Open(stdinPath)
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}
	stdoutFile, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open stdout: %w", err)
	}
	stderrFile, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open stderr: %w", err)
	}
	if err := unix.Dup2(int(stdinFile.Fd()), int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("dup stdin: %w", err)
	}
	if err := unix.Dup2(int(stdoutFile.Fd()), int(os.Stdout.Fd())); err != nil {
		return fmt.Errorf("dup stdout: %w", err)
	}
	if err := unix.Dup2(int(stderrFile.Fd()), int(os.Stderr.Fd())); err != nil {
		return fmt.Errorf("dup stderr: %w", err)
	}
	_ = stdinFile.Close()
	_ = stdoutFile.Close()
	_ = stderrFile.Close()
	return nil
}

func buildEnv(env []string) []string {
	if len(env) > 0 {
		return env
	}
	return []string{"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"}
}

func applySeccomp(denied []string) error {
	filter, err := seccomp.NewFilter(seccomp.ActAllow)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	for _, name := range denied {
		syscallID, err := seccomp.GetSyscallFromName(name)
		if err != nil {
			// Unknown on this kernel/arch; nothing to deny.
			continue
		}
		if err := filter.AddRule(syscallID, seccomp.ActErrno.SetReturnCode(int16(unix.EPERM))); err != nil {
			return fmt.Errorf("add seccomp rule %s: %w", name, err)
		}
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}
