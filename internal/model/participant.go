package model

import "time"

// ExamStatus is the per-participant exam session state.
type ExamStatus string

const (
	ExamNotStarted ExamStatus = "not_started"
	ExamInProgress ExamStatus = "in_progress"
	ExamPaused     ExamStatus = "paused"
	ExamLocked     ExamStatus = "locked"
	ExamSubmitted  ExamStatus = "submitted"
)

// ViolationEvent tags one recognized browser event. Unknown types are
// accepted, counted and tagged other.
type ViolationEvent string

const (
	EventTabHidden    ViolationEvent = "tab_hidden"
	EventWindowBlur   ViolationEvent = "window_blur"
	EventRightClick   ViolationEvent = "right_click"
	EventCopy         ViolationEvent = "copy"
	EventPaste        ViolationEvent = "paste"
	EventDevToolsOpen ViolationEvent = "dev_tools_open"
	EventOther        ViolationEvent = "other"
)

// NormalizeViolationEvent maps a raw event type onto a recognized tag.
func NormalizeViolationEvent(raw string) ViolationEvent {
	switch ViolationEvent(raw) {
	case EventTabHidden, EventWindowBlur, EventRightClick, EventCopy, EventPaste, EventDevToolsOpen:
		return ViolationEvent(raw)
	default:
		return EventOther
	}
}

// ContestParticipant is one (contest, user) registration. (contest, user)
// is unique; rank and score are derived caches owned by the projector.
type ContestParticipant struct {
	ID             int64      `json:"id"`
	ContestID      int64      `json:"contest_id"`
	UserID         int64      `json:"user_id"`
	Nickname       string     `json:"nickname"`
	Rank           int        `json:"rank"`
	Score          int        `json:"score"`
	JoinedAt       time.Time  `json:"joined_at"`
	LeftAt         *time.Time `json:"left_at"`
	StartedAt      *time.Time `json:"started_at"`
	LockedAt       *time.Time `json:"locked_at"`
	ViolationCount int        `json:"violation_count"`
	ExamStatus     ExamStatus `json:"exam_status"`
}
