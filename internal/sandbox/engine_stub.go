//go:build !linux

package sandbox

import (
	"context"
	"fmt"
)

// Config holds engine settings. On non-Linux platforms the engine is a
// stub that reports the sandbox as unavailable.
type Config struct {
	HelperPath       string `yaml:"helperPath"`
	EnableNamespaces bool   `yaml:"enableNamespaces"`
	EnableSeccomp    bool   `yaml:"enableSeccomp"`
	CaptureMaxBytes  int64  `yaml:"captureMaxBytes"`
}

type stubEngine struct{}

// NewEngine returns the stub engine on non-Linux platforms.
func NewEngine(cfg Config) (Runner, error) {
	return &stubEngine{}, nil
}

func (e *stubEngine) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	if err := validateSpec(spec); err != nil {
		return RunResult{}, err
	}
	return RunResult{}, Unavailable(fmt.Errorf("sandbox requires linux"))
}
