package model

import "time"

// ContestStatus is the contest lifecycle tag. The legacy {active, inactive}
// pair is rejected at the API boundary; this triple is authoritative.
type ContestStatus string

const (
	ContestDraft     ContestStatus = "draft"
	ContestPublished ContestStatus = "published"
	ContestArchived  ContestStatus = "archived"
)

// ValidContestStatus reports whether s is an accepted lifecycle value.
func ValidContestStatus(s string) bool {
	switch ContestStatus(s) {
	case ContestDraft, ContestPublished, ContestArchived:
		return true
	default:
		return false
	}
}

// Visibility controls who can list a contest.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Contest holds the lifecycle, window and feature flags the access policy
// and the exam state machine are layered over.
type Contest struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Status       ContestStatus `json:"status"`
	Visibility   Visibility    `json:"visibility"`
	PasswordHash string        `json:"-"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	OwnerID      int64         `json:"owner_id"`
	AdminIDs     []int64       `json:"admin_ids"`

	ScoreboardVisibleDuringContest bool `json:"scoreboard_visible_during_contest"`
	AnonymousModeEnabled           bool `json:"anonymous_mode_enabled"`
	ExamModeEnabled                bool `json:"exam_mode_enabled"`
	AllowAutoUnlock                bool `json:"allow_auto_unlock"`
	AutoUnlockMinutes              int  `json:"auto_unlock_minutes"`
	AllowMultipleJoins             bool `json:"allow_multiple_joins"`
	MaxCheatWarnings               int  `json:"max_cheat_warnings"`
}

// IsAdmin reports whether userID is in the contest admin set.
// The owner is tracked separately and is not a member of AdminIDs.
func (c *Contest) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ContestProblem labels a problem inside a contest with a letter (A, B, ...).
type ContestProblem struct {
	ContestID int64  `json:"contest_id"`
	ProblemID int64  `json:"problem_id"`
	Label     string `json:"label"`
	Ordinal   int    `json:"ordinal"`
}
