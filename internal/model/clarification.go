package model

import "time"

// ClarificationStatus is the answer state of a clarification.
type ClarificationStatus string

const (
	ClarificationPending  ClarificationStatus = "pending"
	ClarificationAnswered ClarificationStatus = "answered"
)

// Clarification is one contest Q&A entry. Visibility: the author sees
// their own, everyone sees public ones, privileged viewers see all.
type Clarification struct {
	ID         int64               `json:"id"`
	ContestID  int64               `json:"contest_id"`
	AuthorID   int64               `json:"author_id"`
	ProblemID  *int64              `json:"problem_id"`
	Question   string              `json:"question"`
	IsPublic   bool                `json:"is_public"`
	Status     ClarificationStatus `json:"status"`
	Answer     string              `json:"answer"`
	AnsweredAt *time.Time          `json:"answered_at"`
	CreatedAt  time.Time           `json:"created_at"`
}
