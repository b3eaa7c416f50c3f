package model

import "time"

// SourceType distinguishes practice and contest submissions.
// source_type=contest if and only if contest is non-null.
type SourceType string

const (
	SourcePractice SourceType = "practice"
	SourceContest  SourceType = "contest"
)

// Submission is one append-only submission record. The judge engine is
// the only writer of verdict/score/metric fields, and writes them once.
type Submission struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	ProblemID  int64      `json:"problem_id"`
	ContestID  *int64     `json:"contest_id"`
	Language   string     `json:"language"`
	Code       string     `json:"code"`
	CreatedAt  time.Time  `json:"created_at"`
	SourceType SourceType `json:"source_type"`

	// IsTest marks a scratch run judged against samples plus the
	// user-supplied custom cases; it never enters scoreboard projection.
	IsTest          bool         `json:"is_test"`
	CustomTestCases []CustomCase `json:"custom_test_cases,omitempty"`

	Status       Verdict `json:"status"`
	Score        int     `json:"score"`
	ExecTimeMs   int64   `json:"exec_time_ms"`
	MemoryKB     int64   `json:"memory_kb"`
	ErrorMessage string  `json:"error_message"`
}

// CustomCase is a user-supplied test case for scratch runs. Custom cases
// contribute results but never score.
type CustomCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// CaseResult is the per-test-case outcome kept for privileged views.
type CaseResult struct {
	SubmissionID int64   `json:"submission_id"`
	Ordinal      int     `json:"ordinal"`
	TestCaseID   int64   `json:"test_case_id"`
	Verdict      Verdict `json:"verdict"`
	TimeMs       int64   `json:"time_ms"`
	MemoryKB     int64   `json:"memory_kb"`
	Score        int     `json:"score"`
	IsCustom     bool    `json:"is_custom"`
}
