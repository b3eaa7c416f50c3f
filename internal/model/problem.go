package model

// Problem is the immutable-for-judging reference a submission runs against.
type Problem struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	TimeLimitMs int64  `json:"time_limit_ms"`
	MemoryMB    int64  `json:"memory_mb"`

	// Keyword gates evaluated before judging.
	ForbiddenKeywords []string `json:"forbidden_keywords"`
	RequiredKeywords  []string `json:"required_keywords"`

	// Visibility flags. When both are set the visible flag wins and the
	// problem is treated as practice-visible.
	PracticeVisible bool `json:"practice_visible"`
	ContestOnly     bool `json:"contest_only"`
}

// TestCase is one (input, expected) pair with a score weight.
type TestCase struct {
	ID        int64  `json:"id"`
	ProblemID int64  `json:"problem_id"`
	Ordinal   int    `json:"ordinal"`
	Input     string `json:"input"`
	Expected  string `json:"expected"`
	Score     int    `json:"score"`
	IsSample  bool   `json:"is_sample"`
}

// ProblemStats are the per-problem aggregate verdict counters, bumped
// atomically when a submission finalizes.
type ProblemStats struct {
	ProblemID int64 `json:"problem_id"`
	Accepted  int64 `json:"accepted"`
	WA        int64 `json:"wa"`
	TLE       int64 `json:"tle"`
	MLE       int64 `json:"mle"`
	RE        int64 `json:"re"`
	CE        int64 `json:"ce"`
}
