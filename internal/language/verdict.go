package language

import (
	"strings"

	"ojcore/internal/model"
	"ojcore/internal/sandbox"
)

// NormalizeOutput trims trailing whitespace on every line and strips
// trailing blank lines. Leading whitespace and interior blank lines are
// significant.
func NormalizeOutput(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// OutputsMatch compares actual program output against the expected output
// under whitespace normalization.
func OutputsMatch(actual, expected string) bool {
	return NormalizeOutput(actual) == NormalizeOutput(expected)
}

// CaseVerdict maps the raw outcome of one run onto a verdict. The
// timed-out flag wins over the exit code, and an OOM-style exit wins
// over a plain runtime error.
func CaseVerdict(res sandbox.RunResult, expected string) model.Verdict {
	switch {
	case res.TimedOut:
		return model.VerdictTLE
	case res.OomKilled || res.ExitCode >= sandbox.OomExitThreshold:
		return model.VerdictMLE
	case res.ExitCode != 0:
		return model.VerdictRE
	case OutputsMatch(res.Stdout, expected):
		return model.VerdictAC
	default:
		return model.VerdictWA
	}
}
