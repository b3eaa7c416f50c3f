// Package policy is the pure contest access decision layered over contest
// lifecycle, time window and participant exam state. It touches no storage;
// callers load the inputs and act on the decision.
package policy

import (
	"time"

	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

// Intent names the operation being gated.
type Intent string

const (
	IntentViewContest Intent = "view_contest"
	IntentSubmit      Intent = "submit"
	IntentExamEvent   Intent = "exam_event"
	IntentEndExam     Intent = "end_exam"
	IntentManage      Intent = "manage"
)

// Decision is the outcome of one policy check.
type Decision struct {
	Allowed bool
	Code    appErr.Code
	Message string
}

// Allow is the positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a negative decision; an empty message falls back to the
// code's default.
func Deny(code appErr.Code, message string) Decision {
	if message == "" {
		message = code.Message()
	}
	return Decision{Code: code, Message: message}
}

// Err converts a denial into a platform error; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return appErr.New(d.Code).WithMessage(d.Message)
}

// IsPrivileged reports whether the user short-circuits the policy for the
// given contest: staff, admin or teacher role, contest owner, or listed
// contest admin.
func IsPrivileged(user *model.User, contest *model.Contest) bool {
	if user == nil {
		return false
	}
	if user.IsPrivilegedRole() {
		return true
	}
	if contest == nil {
		return false
	}
	return contest.OwnerID == user.ID || contest.IsAdmin(user.ID)
}

// Decide runs the layered access check. participant may be nil when the
// user never registered.
func Decide(user *model.User, contest *model.Contest, participant *model.ContestParticipant,
	intent Intent, now time.Time) Decision {

	if IsPrivileged(user, contest) {
		return Allow()
	}
	if intent == IntentManage {
		return Deny(appErr.CodeForbidden, "")
	}

	// Layer 1: contest lifecycle.
	if contest.Status != model.ContestPublished {
		return Deny(appErr.CodeContestNotPublished, "")
	}

	// Layer 2: time window.
	switch intent {
	case IntentViewContest:
		// After the end everyone may look; before the start only when the
		// contest exposes its scoreboard early.
		if now.Before(contest.StartTime) && !contest.ScoreboardVisibleDuringContest {
			return Deny(appErr.CodeNotStarted, "")
		}
	default:
		if now.Before(contest.StartTime) {
			return Deny(appErr.CodeNotStarted, "")
		}
		if now.After(contest.EndTime) {
			return Deny(appErr.CodeEnded, "")
		}
	}

	if intent == IntentViewContest {
		return Allow()
	}

	// Layer 3: participant exam state.
	if participant == nil {
		return Deny(appErr.CodeNotRegistered, "")
	}
	if !contest.ExamModeEnabled {
		// Without exam mode, registration alone admits the participant.
		return Allow()
	}
	switch participant.ExamStatus {
	case model.ExamInProgress:
		return Allow()
	case model.ExamPaused:
		return Deny(appErr.CodeExamNotInProgress, "Exam is paused, resume it to continue")
	case model.ExamLocked:
		return Deny(appErr.CodeExamNotInProgress, "Exam is locked")
	case model.ExamSubmitted:
		return Deny(appErr.CodeExamNotInProgress, "Exam has already been submitted")
	default:
		return Deny(appErr.CodeExamNotInProgress, "")
	}
}
