package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/mq"
	"ojcore/internal/contest/policy"
	"ojcore/internal/judge"
	"ojcore/internal/language"
	"ojcore/internal/model"
	"ojcore/pkg/utils/logger"

	appErr "ojcore/pkg/errors"

	"go.uber.org/zap"
)

const maxCodeBytes = 64 * 1024

// Store is the persistence intake and listings depend on.
type Store interface {
	Create(ctx context.Context, sub *model.Submission) error
	GetByID(ctx context.Context, id int64) (*model.Submission, error)
	List(ctx context.Context, filter Filter) ([]model.Submission, int64, error)
	ListCaseResults(ctx context.Context, submissionID int64) ([]model.CaseResult, error)
	GetProblem(ctx context.Context, id int64) (*model.Problem, error)
}

// ContestSource loads the contest a submission targets.
type ContestSource interface {
	GetContest(ctx context.Context, id int64) (*model.Contest, error)
}

// ParticipantSource resolves the caller's registration with lazy
// auto-unlock applied; nil means not registered.
type ParticipantSource interface {
	LookupParticipant(ctx context.Context, contestID, userID int64) (*model.ContestParticipant, error)
}

// RateLimit caps per-user submission frequency.
type RateLimit struct {
	Window time.Duration `yaml:"window"`
	Max    int64         `yaml:"max"`
}

func (r RateLimit) normalized() RateLimit {
	if r.Window <= 0 {
		r.Window = 10 * time.Second
	}
	if r.Max <= 0 {
		r.Max = 1
	}
	return r
}

// CreateRequest is one intake payload.
type CreateRequest struct {
	ProblemID       int64              `json:"problem" binding:"required"`
	Language        string             `json:"language" binding:"required"`
	Code            string             `json:"code" binding:"required"`
	ContestID       *int64             `json:"contest"`
	IsTest          bool               `json:"is_test"`
	CustomTestCases []model.CustomCase `json:"custom_test_cases"`
}

// Service is the intake and listing service.
type Service struct {
	store        Store
	contests     ContestSource
	participants ParticipantSource
	queue        mq.MessageQueue
	limiter      cache.Cache
	archiver     *Archiver
	rate         RateLimit
	now          func() time.Time
}

// NewService creates the submission service. limiter and archiver may be
// nil; rate limiting and source mirroring are then skipped.
func NewService(store Store, contests ContestSource, participants ParticipantSource,
	queue mq.MessageQueue, limiter cache.Cache, archiver *Archiver, rate RateLimit) *Service {
	return &Service{
		store:        store,
		contests:     contests,
		participants: participants,
		queue:        queue,
		limiter:      limiter,
		archiver:     archiver,
		rate:         rate.normalized(),
		now:          time.Now,
	}
}

// keywordGate returns the violation message, or "" when the code passes.
// Forbidden keywords are checked before required ones.
func keywordGate(problem *model.Problem, code string) string {
	for _, kw := range problem.ForbiddenKeywords {
		if kw != "" && strings.Contains(code, kw) {
			return fmt.Sprintf("Forbidden keyword present: %s", kw)
		}
	}
	for _, kw := range problem.RequiredKeywords {
		if kw != "" && !strings.Contains(code, kw) {
			return fmt.Sprintf("Required keyword missing: %s", kw)
		}
	}
	return ""
}

func (s *Service) checkRate(ctx context.Context, userID int64) error {
	if s.limiter == nil {
		return nil
	}
	key := fmt.Sprintf("submit:rate:%d", userID)
	n, err := s.limiter.Incr(ctx, key)
	if err != nil {
		// The cache is advisory; a broken limiter must not block intake.
		logger.Warn(ctx, "rate limiter unavailable", zap.Error(err))
		return nil
	}
	if n == 1 {
		if err := s.limiter.Expire(ctx, key, s.rate.Window); err != nil {
			logger.Warn(ctx, "rate limiter expire failed", zap.Error(err))
		}
	}
	if n > s.rate.Max {
		return appErr.New(appErr.CodeSubmitTooFrequently)
	}
	return nil
}

// Create runs the intake pipeline: validation, contest policy, keyword
// gate, persist, enqueue. A keyword rejection persists with verdict KR
// and never reaches the queue. A policy denial persists nothing.
func (s *Service) Create(ctx context.Context, user *model.User, req *CreateRequest) (*model.Submission, error) {
	if user == nil {
		return nil, appErr.New(appErr.CodeUnauthorized)
	}
	if len(req.Code) == 0 {
		return nil, appErr.ValidationError("code", "must not be empty")
	}
	if len(req.Code) > maxCodeBytes {
		return nil, appErr.ValidationError("code", "exceeds 64KB limit")
	}
	if _, err := language.Lookup(req.Language); err != nil {
		return nil, err
	}

	problem, err := s.store.GetProblem(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}

	// The keyword gate fires before the contest access check, so a gated
	// submission is recorded as KR even when the access check would also
	// have rejected it.
	gateMsg := keywordGate(problem, req.Code)

	sourceType := model.SourcePractice
	if req.ContestID != nil {
		sourceType = model.SourceContest
		if gateMsg == "" {
			contest, err := s.contests.GetContest(ctx, *req.ContestID)
			if err != nil {
				return nil, err
			}
			var participant *model.ContestParticipant
			if !policy.IsPrivileged(user, contest) {
				participant, err = s.participants.LookupParticipant(ctx, contest.ID, user.ID)
				if err != nil {
					return nil, err
				}
			}
			if decision := policy.Decide(user, contest, participant, policy.IntentSubmit, s.now()); !decision.Allowed {
				return nil, decision.Err()
			}
		}
	}

	if err := s.checkRate(ctx, user.ID); err != nil {
		return nil, err
	}

	sub := &model.Submission{
		UserID:          user.ID,
		ProblemID:       problem.ID,
		ContestID:       req.ContestID,
		Language:        req.Language,
		Code:            req.Code,
		SourceType:      sourceType,
		IsTest:          req.IsTest,
		CustomTestCases: req.CustomTestCases,
		Status:          model.VerdictPending,
	}
	if gateMsg != "" {
		sub.Status = model.VerdictKR
		sub.ErrorMessage = gateMsg
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}
	if s.archiver != nil && !sub.IsTest {
		s.archiver.Archive(ctx, sub)
	}
	if sub.Status == model.VerdictKR {
		return sub, nil
	}

	body, err := judge.EncodeTask(judge.Task{SubmissionID: sub.ID})
	if err != nil {
		return nil, appErr.InternalError(err)
	}
	if err := s.queue.Publish(ctx, judge.TopicJudgeTasks, mq.NewMessage(body)); err != nil {
		// The row is already durable as pending; the recovery sweep will
		// re-enqueue it, so the client still gets a success.
		logger.Error(ctx, "enqueue judge task failed",
			zap.Int64("submission_id", sub.ID), zap.Error(err))
	}
	return sub, nil
}

// Detail is a submission plus per-case rows for privileged viewers.
type Detail struct {
	*model.Submission
	CaseResults []model.CaseResult `json:"case_results,omitempty"`
}

// Get returns one submission. Code and per-case rows are visible to the
// owner and to privileged users only.
func (s *Service) Get(ctx context.Context, user *model.User, id int64) (*Detail, error) {
	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	privileged := user.IsPrivilegedRole()
	if sub.UserID != user.ID && !privileged {
		return nil, appErr.ForbiddenError("Not your submission")
	}
	detail := &Detail{Submission: sub}
	if privileged || sub.UserID == user.ID {
		results, err := s.store.ListCaseResults(ctx, id)
		if err != nil {
			return nil, err
		}
		detail.CaseResults = results
	}
	return detail, nil
}

// List returns one page of submissions. Non-privileged callers are
// pinned to their own rows, and include_all is privileged-only.
func (s *Service) List(ctx context.Context, user *model.User, filter Filter) ([]model.Submission, int64, error) {
	if !user.IsPrivilegedRole() {
		filter.UserID = user.ID
		filter.IncludeAll = false
	}
	subs, count, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	// Code stays out of list payloads.
	for i := range subs {
		subs[i].Code = ""
		subs[i].CustomTestCases = nil
	}
	return subs, count, nil
}
