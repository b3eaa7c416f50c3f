package contest

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ojcore/internal/contest/policy"
	"ojcore/internal/model"
	"ojcore/pkg/utils/logger"

	appErr "ojcore/pkg/errors"

	"go.uber.org/zap"
)

const maxNicknameLen = 50

// Store is the persistence the contest service needs.
type Store interface {
	GetContest(ctx context.Context, id int64) (*model.Contest, error)
	ListVisible(ctx context.Context, user *model.User) ([]model.Contest, error)
	ListManaged(ctx context.Context, user *model.User) ([]model.Contest, error)
	ListParticipated(ctx context.Context, user *model.User) ([]model.Contest, error)

	GetParticipant(ctx context.Context, contestID, userID int64) (*model.ContestParticipant, error)
	CreateParticipant(ctx context.Context, p *model.ContestParticipant) error
	SetParticipantPresence(ctx context.Context, contestID, userID int64, leftAt *time.Time) error

	ListAdminIDs(ctx context.Context, contestID int64) ([]int64, error)
	AddAdmin(ctx context.Context, contestID, userID int64) error
	RemoveAdmin(ctx context.Context, contestID, userID int64) error

	CreateClarification(ctx context.Context, cl *model.Clarification) error
	GetClarification(ctx context.Context, id int64) (*model.Clarification, error)
	ListClarifications(ctx context.Context, contestID int64) ([]model.Clarification, error)
	AnswerClarification(ctx context.Context, id int64, answer string, isPublic bool, answeredAt time.Time) error
}

// Service covers registration, presence, the admin roster and
// clarifications.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates the contest service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// GetContest loads a contest for a viewer, enforcing the view policy.
func (s *Service) GetContest(ctx context.Context, user *model.User, contestID int64) (*model.Contest, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	var participant *model.ContestParticipant
	if user != nil {
		participant, err = s.store.GetParticipant(ctx, contestID, user.ID)
		if err != nil {
			return nil, err
		}
	}
	if decision := policy.Decide(user, contest, participant, policy.IntentViewContest, s.now()); !decision.Allowed {
		return nil, decision.Err()
	}
	return contest, nil
}

// ListContests lists contests for the given visibility scope.
func (s *Service) ListContests(ctx context.Context, user *model.User, scope string) ([]model.Contest, error) {
	switch scope {
	case "", "visible":
		return s.store.ListVisible(ctx, user)
	case "manage":
		return s.store.ListManaged(ctx, user)
	case "participated":
		return s.store.ListParticipated(ctx, user)
	default:
		return nil, appErr.ValidationError("scope", "must be one of visible, manage, participated")
	}
}

// Register joins a user into a contest. Private contests require the
// contest password; duplicates report the stable already-registered
// conflict.
func (s *Service) Register(ctx context.Context, user *model.User, contestID int64, password, nickname string) (*model.ContestParticipant, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	privileged := policy.IsPrivileged(user, contest)
	if !privileged && contest.Status != model.ContestPublished {
		return nil, appErr.New(appErr.CodeContestNotPublished)
	}
	if !privileged && contest.Visibility == model.VisibilityPrivate {
		if err := bcrypt.CompareHashAndPassword([]byte(contest.PasswordHash), []byte(password)); err != nil {
			return nil, appErr.New(appErr.CodeWrongPassword)
		}
	}

	if nickname == "" {
		nickname = user.Username
	}
	if len(nickname) > maxNicknameLen {
		return nil, appErr.ValidationError("nickname", "must be at most 50 characters")
	}

	participant := &model.ContestParticipant{
		ContestID:  contestID,
		UserID:     user.ID,
		Nickname:   nickname,
		JoinedAt:   s.now(),
		ExamStatus: model.ExamNotStarted,
	}
	if err := s.store.CreateParticipant(ctx, participant); err != nil {
		return nil, err
	}
	logger.Info(ctx, "participant registered",
		zap.Int64("contest_id", contestID), zap.Int64("user_id", user.ID))
	return participant, nil
}

// HashContestPassword hashes a private contest password for storage.
func HashContestPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", appErr.InternalError(err)
	}
	return string(hash), nil
}

// Enter marks a participant present again after leaving.
func (s *Service) Enter(ctx context.Context, user *model.User, contestID int64) error {
	return s.togglePresence(ctx, user, contestID, nil)
}

// Leave marks a participant as having left the contest session.
func (s *Service) Leave(ctx context.Context, user *model.User, contestID int64) error {
	leftAt := s.now()
	return s.togglePresence(ctx, user, contestID, &leftAt)
}

func (s *Service) togglePresence(ctx context.Context, user *model.User, contestID int64, leftAt *time.Time) error {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if !contest.AllowMultipleJoins {
		return appErr.ForbiddenError("Contest does not allow leaving and re-entering")
	}
	participant, err := s.store.GetParticipant(ctx, contestID, user.ID)
	if err != nil {
		return err
	}
	if participant == nil {
		return appErr.New(appErr.CodeNotRegistered)
	}
	return s.store.SetParticipantPresence(ctx, contestID, user.ID, leftAt)
}

// requireOwner admits only the contest owner and staff. Listed admins do
// not get to change the roster.
func requireOwner(actor *model.User, contest *model.Contest) error {
	if actor == nil {
		return appErr.New(appErr.CodeUnauthorized)
	}
	if actor.IsStaff || contest.OwnerID == actor.ID {
		return nil
	}
	return appErr.ForbiddenError("Only the contest owner can change the admin roster")
}

// AddAdmin adds a user to the roster. Owner only; a duplicate reports the
// stable already-admin conflict.
func (s *Service) AddAdmin(ctx context.Context, actor *model.User, contestID, targetUserID int64) error {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if err := requireOwner(actor, contest); err != nil {
		return err
	}
	if targetUserID == contest.OwnerID {
		return appErr.BadRequest("Contest owner cannot be added as admin")
	}
	if err := s.store.AddAdmin(ctx, contestID, targetUserID); err != nil {
		return err
	}
	logger.Info(ctx, "contest admin added",
		zap.Int64("contest_id", contestID), zap.Int64("admin_id", targetUserID))
	return nil
}

// RemoveAdmin removes a user from the roster. Owner only.
func (s *Service) RemoveAdmin(ctx context.Context, actor *model.User, contestID, targetUserID int64) error {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if err := requireOwner(actor, contest); err != nil {
		return err
	}
	return s.store.RemoveAdmin(ctx, contestID, targetUserID)
}

// ListAdmins returns the roster. Owner only.
func (s *Service) ListAdmins(ctx context.Context, actor *model.User, contestID int64) ([]int64, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, contest); err != nil {
		return nil, err
	}
	return s.store.ListAdminIDs(ctx, contestID)
}

// CreateClarification files a question. Registered participants and
// privileged users may ask.
func (s *Service) CreateClarification(ctx context.Context, user *model.User, contestID int64,
	problemID *int64, question string, isPublic bool) (*model.Clarification, error) {

	if question == "" {
		return nil, appErr.ValidationError("question", "must not be empty")
	}
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if !policy.IsPrivileged(user, contest) {
		participant, err := s.store.GetParticipant(ctx, contestID, user.ID)
		if err != nil {
			return nil, err
		}
		if participant == nil {
			return nil, appErr.New(appErr.CodeNotRegistered)
		}
	}

	cl := &model.Clarification{
		ContestID: contestID,
		AuthorID:  user.ID,
		ProblemID: problemID,
		Question:  question,
		IsPublic:  isPublic,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateClarification(ctx, cl); err != nil {
		return nil, err
	}
	return cl, nil
}

// ListClarifications returns the contest's clarifications the viewer may
// see: their own, the public ones, and everything for privileged viewers.
func (s *Service) ListClarifications(ctx context.Context, user *model.User, contestID int64) ([]model.Clarification, error) {
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListClarifications(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if policy.IsPrivileged(user, contest) {
		return all, nil
	}
	visible := make([]model.Clarification, 0, len(all))
	for _, cl := range all {
		if cl.IsPublic || (user != nil && cl.AuthorID == user.ID) {
			visible = append(visible, cl)
		}
	}
	return visible, nil
}

// ReplyClarification answers a question. Privileged only.
func (s *Service) ReplyClarification(ctx context.Context, actor *model.User, contestID, clarificationID int64,
	answer string, isPublic bool) (*model.Clarification, error) {

	if answer == "" {
		return nil, appErr.ValidationError("answer", "must not be empty")
	}
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if decision := policy.Decide(actor, contest, nil, policy.IntentManage, s.now()); !decision.Allowed {
		return nil, decision.Err()
	}
	cl, err := s.store.GetClarification(ctx, clarificationID)
	if err != nil {
		return nil, err
	}
	if cl.ContestID != contestID {
		return nil, appErr.NotFoundError("clarification")
	}
	if err := s.store.AnswerClarification(ctx, clarificationID, answer, isPublic, s.now()); err != nil {
		return nil, err
	}
	return s.store.GetClarification(ctx, clarificationID)
}
