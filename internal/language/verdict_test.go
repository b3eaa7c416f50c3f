package language

import (
	"testing"

	"ojcore/internal/model"
	"ojcore/internal/sandbox"
)

func TestNormalizeOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "3", want: "3"},
		{name: "trailing newline", input: "3\n", want: "3"},
		{name: "trailing spaces per line", input: "1 2  \n3\t\n", want: "1 2\n3"},
		{name: "trailing blank lines", input: "a\nb\n\n\n", want: "a\nb"},
		{name: "crlf", input: "a\r\nb\r\n", want: "a\nb"},
		{name: "interior blank line kept", input: "a\n\nb\n", want: "a\n\nb"},
		{name: "leading whitespace kept", input: "  a\n", want: "  a"},
		{name: "empty", input: "", want: ""},
		{name: "only blank lines", input: "\n\n", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeOutput(tt.input); got != tt.want {
				t.Errorf("NormalizeOutput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCaseVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		res      sandbox.RunResult
		expected string
		want     model.Verdict
	}{
		{
			name:     "matching output",
			res:      sandbox.RunResult{ExitCode: 0, Stdout: "3\n"},
			expected: "3",
			want:     model.VerdictAC,
		},
		{
			name:     "wrong output",
			res:      sandbox.RunResult{ExitCode: 0, Stdout: "4"},
			expected: "3",
			want:     model.VerdictWA,
		},
		{
			name:     "timed out wins over exit code",
			res:      sandbox.RunResult{ExitCode: 137, TimedOut: true},
			expected: "3",
			want:     model.VerdictTLE,
		},
		{
			// A CPU-limit kill reports an OOM-style exit code; the
			// engine marks it timed out and that must win.
			name:     "cpu limit kill is TLE not MLE",
			res:      sandbox.RunResult{ExitCode: 137, TimeMs: 1008, TimedOut: true},
			expected: "3",
			want:     model.VerdictTLE,
		},
		{
			name:     "oom kill flag",
			res:      sandbox.RunResult{ExitCode: 1, OomKilled: true},
			expected: "3",
			want:     model.VerdictMLE,
		},
		{
			name:     "oom style exit code",
			res:      sandbox.RunResult{ExitCode: 137},
			expected: "3",
			want:     model.VerdictMLE,
		},
		{
			name:     "nonzero exit",
			res:      sandbox.RunResult{ExitCode: 2, Stdout: "3"},
			expected: "3",
			want:     model.VerdictRE,
		},
		{
			name:     "whitespace normalized match",
			res:      sandbox.RunResult{ExitCode: 0, Stdout: "1 2 \n3\n\n"},
			expected: "1 2\n3",
			want:     model.VerdictAC,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CaseVerdict(tt.res, tt.expected); got != tt.want {
				t.Errorf("CaseVerdict = %s, want %s", got, tt.want)
			}
		})
	}
}
