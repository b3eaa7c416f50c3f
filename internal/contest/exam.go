package contest

import (
	"context"
	"time"

	"ojcore/internal/contest/policy"
	"ojcore/internal/model"
	"ojcore/pkg/utils/logger"

	appErr "ojcore/pkg/errors"

	"go.uber.org/zap"
)

// ExamStore is the persistence the exam state machine needs.
type ExamStore interface {
	GetContest(ctx context.Context, id int64) (*model.Contest, error)
	GetParticipant(ctx context.Context, contestID, userID int64) (*model.ContestParticipant, error)
	// WithParticipantLock serializes transitions per participant.
	WithParticipantLock(ctx context.Context, contestID, userID int64,
		fn func(p *model.ContestParticipant) (*model.ContestParticipant, error)) error
	RecordExamEvent(ctx context.Context, contestID, userID int64, event model.ViolationEvent, at time.Time) error
}

// ExamService drives per-participant exam sessions:
// not_started -> in_progress <-> paused -> submitted, with locked reachable
// on violation overflow and recoverable by unlock or auto-unlock.
type ExamService struct {
	store ExamStore
	now   func() time.Time
}

// NewExamService creates the exam state machine service.
func NewExamService(store ExamStore) *ExamService {
	return &ExamService{store: store, now: time.Now}
}

// gate runs the lifecycle and window layers for exam transitions.
// Privileged users bypass them.
func (s *ExamService) gate(user *model.User, contest *model.Contest, now time.Time) error {
	if policy.IsPrivileged(user, contest) {
		return nil
	}
	if contest.Status != model.ContestPublished {
		return appErr.New(appErr.CodeContestNotPublished)
	}
	if now.Before(contest.StartTime) {
		return appErr.New(appErr.CodeNotStarted)
	}
	if now.After(contest.EndTime) {
		return appErr.New(appErr.CodeEnded)
	}
	if !contest.ExamModeEnabled {
		return appErr.BadRequest("Exam mode is not enabled for this contest")
	}
	return nil
}

// StartExam moves the caller's session to in_progress, stamping started_at
// on the first entry. A paused session resumes the same way.
func (s *ExamService) StartExam(ctx context.Context, user *model.User, contestID int64) (*model.ContestParticipant, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.gate(user, contest, now); err != nil {
		return nil, err
	}

	var result *model.ContestParticipant
	err = s.store.WithParticipantLock(ctx, contestID, user.ID, func(p *model.ContestParticipant) (*model.ContestParticipant, error) {
		switch p.ExamStatus {
		case model.ExamNotStarted, model.ExamPaused:
			p.ExamStatus = model.ExamInProgress
			if p.StartedAt == nil {
				startedAt := now
				p.StartedAt = &startedAt
			}
			result = p
			return p, nil
		case model.ExamInProgress:
			return nil, appErr.Conflict("Exam already in progress")
		case model.ExamLocked:
			return nil, appErr.New(appErr.CodeExamLocked)
		case model.ExamSubmitted:
			return nil, appErr.New(appErr.CodeExamSubmitted)
		default:
			return nil, appErr.BadRequest("Unknown exam state")
		}
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "exam started",
		zap.Int64("contest_id", contestID), zap.Int64("user_id", user.ID))
	return result, nil
}

// PauseExam moves a running session to paused.
func (s *ExamService) PauseExam(ctx context.Context, user *model.User, contestID int64) (*model.ContestParticipant, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if err := s.gate(user, contest, s.now()); err != nil {
		return nil, err
	}

	var result *model.ContestParticipant
	err = s.store.WithParticipantLock(ctx, contestID, user.ID, func(p *model.ContestParticipant) (*model.ContestParticipant, error) {
		if p.ExamStatus != model.ExamInProgress {
			return nil, appErr.New(appErr.CodeExamNotInProgress)
		}
		p.ExamStatus = model.ExamPaused
		result = p
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EndExam moves a running session to its terminal submitted state.
func (s *ExamService) EndExam(ctx context.Context, user *model.User, contestID int64) (*model.ContestParticipant, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if err := s.gate(user, contest, s.now()); err != nil {
		return nil, err
	}

	var result *model.ContestParticipant
	err = s.store.WithParticipantLock(ctx, contestID, user.ID, func(p *model.ContestParticipant) (*model.ContestParticipant, error) {
		if p.ExamStatus != model.ExamInProgress {
			return nil, appErr.New(appErr.CodeExamNotInProgress)
		}
		p.ExamStatus = model.ExamSubmitted
		result = p
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "exam submitted",
		zap.Int64("contest_id", contestID), zap.Int64("user_id", user.ID))
	return result, nil
}

// LogEvent records one browser violation. Unknown event types are counted
// under other. Overflowing max_cheat_warnings locks the session.
func (s *ExamService) LogEvent(ctx context.Context, user *model.User, contestID int64, rawEvent string) (*model.ContestParticipant, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.gate(user, contest, now); err != nil {
		return nil, err
	}

	event := model.NormalizeViolationEvent(rawEvent)
	var result *model.ContestParticipant
	err = s.store.WithParticipantLock(ctx, contestID, user.ID, func(p *model.ContestParticipant) (*model.ContestParticipant, error) {
		if p.ExamStatus != model.ExamInProgress {
			return nil, appErr.New(appErr.CodeExamNotInProgress)
		}
		p.ViolationCount++
		if p.ViolationCount > contest.MaxCheatWarnings {
			p.ExamStatus = model.ExamLocked
			lockedAt := now
			p.LockedAt = &lockedAt
		}
		result = p
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.RecordExamEvent(ctx, contestID, user.ID, event, now); err != nil {
		// The count already advanced; the event row is advisory.
		logger.Warn(ctx, "record exam event failed",
			zap.Int64("contest_id", contestID), zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if result.ExamStatus == model.ExamLocked {
		logger.Warn(ctx, "participant locked on violation overflow",
			zap.Int64("contest_id", contestID), zap.Int64("user_id", user.ID),
			zap.Int("violation_count", result.ViolationCount),
			zap.String("event", string(event)))
	}
	return result, nil
}

// Unlock moves a locked session back to paused. Privileged callers only.
func (s *ExamService) Unlock(ctx context.Context, actor *model.User, contestID, targetUserID int64) (*model.ContestParticipant, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if decision := policy.Decide(actor, contest, nil, policy.IntentManage, s.now()); !decision.Allowed {
		return nil, decision.Err()
	}

	var result *model.ContestParticipant
	err = s.store.WithParticipantLock(ctx, contestID, targetUserID, func(p *model.ContestParticipant) (*model.ContestParticipant, error) {
		if p.ExamStatus != model.ExamLocked {
			return nil, appErr.BadRequest("Participant is not locked")
		}
		p.ExamStatus = model.ExamPaused
		p.LockedAt = nil
		result = p
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "participant unlocked",
		zap.Int64("contest_id", contestID), zap.Int64("user_id", targetUserID),
		zap.Int64("actor_id", actor.ID))
	return result, nil
}

// Reopen moves a submitted session back to paused. Privileged callers only.
func (s *ExamService) Reopen(ctx context.Context, actor *model.User, contestID, targetUserID int64) (*model.ContestParticipant, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if decision := policy.Decide(actor, contest, nil, policy.IntentManage, s.now()); !decision.Allowed {
		return nil, decision.Err()
	}

	var result *model.ContestParticipant
	err = s.store.WithParticipantLock(ctx, contestID, targetUserID, func(p *model.ContestParticipant) (*model.ContestParticipant, error) {
		if p.ExamStatus != model.ExamSubmitted {
			return nil, appErr.BadRequest("Participant has not submitted the exam")
		}
		p.ExamStatus = model.ExamPaused
		result = p
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "exam reopened",
		zap.Int64("contest_id", contestID), zap.Int64("user_id", targetUserID),
		zap.Int64("actor_id", actor.ID))
	return result, nil
}

// MaybeAutoUnlock lazily advances an expired lock to paused. It is called
// on the read paths, is idempotent, and serializes on the participant row,
// so two concurrent reads produce a single transition.
func (s *ExamService) MaybeAutoUnlock(ctx context.Context, contest *model.Contest, p *model.ContestParticipant) (*model.ContestParticipant, error) {
	if p == nil || !s.autoUnlockDue(contest, p, s.now()) {
		return p, nil
	}
	var result *model.ContestParticipant
	err := s.store.WithParticipantLock(ctx, contest.ID, p.UserID, func(locked *model.ContestParticipant) (*model.ContestParticipant, error) {
		result = locked
		// Re-check under the lock: a concurrent read may have advanced it.
		if !s.autoUnlockDue(contest, locked, s.now()) {
			return nil, nil
		}
		locked.ExamStatus = model.ExamPaused
		locked.LockedAt = nil
		return locked, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ExamService) autoUnlockDue(contest *model.Contest, p *model.ContestParticipant, now time.Time) bool {
	if !contest.AllowAutoUnlock || p.ExamStatus != model.ExamLocked || p.LockedAt == nil {
		return false
	}
	deadline := p.LockedAt.Add(time.Duration(contest.AutoUnlockMinutes) * time.Minute)
	return !now.Before(deadline)
}

// LookupParticipant resolves a registration with lazy auto-unlock
// applied. It returns nil without error when the user is not registered,
// leaving the denial decision to the caller's policy check.
func (s *ExamService) LookupParticipant(ctx context.Context, contestID, userID int64) (*model.ContestParticipant, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetParticipant(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}
	return s.MaybeAutoUnlock(ctx, contest, p)
}

// ParticipantState is the read path: it loads the caller's registration
// and applies lazy auto-unlock.
func (s *ExamService) ParticipantState(ctx context.Context, user *model.User, contestID int64) (*model.ContestParticipant, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetParticipant(ctx, contestID, user.ID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, appErr.New(appErr.CodeNotRegistered)
	}
	return s.MaybeAutoUnlock(ctx, contest, p)
}
