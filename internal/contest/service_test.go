package contest

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

func privateContest(t *testing.T) *model.Contest {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	c := examContest()
	c.Visibility = model.VisibilityPrivate
	c.PasswordHash = string(hash)
	return c
}

func TestRegisterPrivateContest(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.contests[1] = privateContest(t)
	svc := NewService(store)
	svc.now = func() time.Time { return examNow }
	ctx := context.Background()
	user := &model.User{ID: 7, Username: "alpha", Role: model.RoleStudent}

	if _, err := svc.Register(ctx, user, 1, "wrong", ""); !appErr.Is(err, appErr.CodeWrongPassword) {
		t.Fatalf("wrong password: code = %s, want WRONG_PASSWORD", appErr.GetCode(err))
	}

	p, err := svc.Register(ctx, user, 1, "secret", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.Nickname != "alpha" {
		t.Errorf("nickname = %q, want username fallback", p.Nickname)
	}
	if p.ExamStatus != model.ExamNotStarted {
		t.Errorf("exam_status = %s, want not_started", p.ExamStatus)
	}

	_, err = svc.Register(ctx, user, 1, "secret", "")
	if !appErr.Is(err, appErr.CodeConflict) {
		t.Fatalf("duplicate register: code = %s, want CONFLICT", appErr.GetCode(err))
	}
	if err.Error() != "Already registered" {
		t.Errorf("duplicate register message = %q, want stable %q", err.Error(), "Already registered")
	}
}

func TestRegisterChecksLifecycleAndNickname(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	draft := examContest()
	draft.Status = model.ContestDraft
	store.contests[1] = draft
	svc := NewService(store)
	user := &model.User{ID: 7, Username: "alpha", Role: model.RoleStudent}

	if _, err := svc.Register(context.Background(), user, 1, "", ""); !appErr.Is(err, appErr.CodeContestNotPublished) {
		t.Errorf("draft register: code = %s, want CONTEST_NOT_PUBLISHED", appErr.GetCode(err))
	}

	store.contests[1] = examContest()
	long := make([]byte, maxNicknameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := svc.Register(context.Background(), user, 1, "", string(long)); !appErr.Is(err, appErr.CodeValidation) {
		t.Errorf("long nickname: code = %s, want VALIDATION_ERROR", appErr.GetCode(err))
	}
}

func TestPresenceToggle(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	c := examContest()
	c.AllowMultipleJoins = true
	store.contests[1] = c
	store.participants[participantKey(1, 7)] = &model.ContestParticipant{
		ID: 1, ContestID: 1, UserID: 7, ExamStatus: model.ExamNotStarted,
	}
	svc := NewService(store)
	ctx := context.Background()
	user := &model.User{ID: 7, Username: "alpha", Role: model.RoleStudent}

	if err := svc.Leave(ctx, user, 1); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if store.participants[participantKey(1, 7)].LeftAt == nil {
		t.Error("left_at not set after Leave")
	}
	if err := svc.Enter(ctx, user, 1); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if store.participants[participantKey(1, 7)].LeftAt != nil {
		t.Error("left_at not cleared after Enter")
	}

	c.AllowMultipleJoins = false
	if err := svc.Leave(ctx, user, 1); !appErr.Is(err, appErr.CodeForbidden) {
		t.Errorf("Leave without allow_multiple_joins: code = %s, want FORBIDDEN", appErr.GetCode(err))
	}
}

func TestAdminRosterOwnerOnly(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.contests[1] = examContest()
	svc := NewService(store)
	ctx := context.Background()
	owner := &model.User{ID: 100, Username: "owner", Role: model.RoleTeacher}

	if err := svc.AddAdmin(ctx, owner, 1, 200); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	err := svc.AddAdmin(ctx, owner, 1, 200)
	if !appErr.Is(err, appErr.CodeConflict) {
		t.Fatalf("duplicate AddAdmin: code = %s, want CONFLICT", appErr.GetCode(err))
	}
	if err.Error() != "Already admin" {
		t.Errorf("duplicate AddAdmin message = %q, want stable %q", err.Error(), "Already admin")
	}

	// A listed admin is still not the owner.
	admin := &model.User{ID: 200, Username: "helper", Role: model.RoleStudent}
	if err := svc.AddAdmin(ctx, admin, 1, 300); !appErr.Is(err, appErr.CodeForbidden) {
		t.Errorf("AddAdmin by non-owner: code = %s, want FORBIDDEN", appErr.GetCode(err))
	}

	if err := svc.AddAdmin(ctx, owner, 1, 100); !appErr.Is(err, appErr.CodeValidation) {
		t.Errorf("AddAdmin of owner: code = %s, want VALIDATION_ERROR", appErr.GetCode(err))
	}

	if err := svc.RemoveAdmin(ctx, owner, 1, 200); err != nil {
		t.Fatalf("RemoveAdmin: %v", err)
	}
	if err := svc.RemoveAdmin(ctx, owner, 1, 200); !appErr.Is(err, appErr.CodeNotFound) {
		t.Errorf("RemoveAdmin twice: code = %s, want NOT_FOUND", appErr.GetCode(err))
	}
}

func TestClarificationVisibility(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.contests[1] = examContest()
	store.participants[participantKey(1, 7)] = &model.ContestParticipant{
		ID: 1, ContestID: 1, UserID: 7, ExamStatus: model.ExamInProgress,
	}
	store.participants[participantKey(1, 8)] = &model.ContestParticipant{
		ID: 2, ContestID: 1, UserID: 8, ExamStatus: model.ExamInProgress,
	}
	svc := NewService(store)
	ctx := context.Background()
	asker := &model.User{ID: 7, Username: "alpha", Role: model.RoleStudent}
	other := &model.User{ID: 8, Username: "beta", Role: model.RoleStudent}
	owner := &model.User{ID: 100, Username: "owner", Role: model.RoleTeacher}

	private, err := svc.CreateClarification(ctx, asker, 1, nil, "Is 64-bit needed?", false)
	if err != nil {
		t.Fatalf("CreateClarification: %v", err)
	}
	if _, err := svc.CreateClarification(ctx, other, 1, nil, "Sample 2 wrong?", true); err != nil {
		t.Fatalf("CreateClarification public: %v", err)
	}

	byAsker, err := svc.ListClarifications(ctx, asker, 1)
	if err != nil {
		t.Fatalf("ListClarifications: %v", err)
	}
	if len(byAsker) != 2 {
		t.Errorf("asker sees %d clarifications, want own + public = 2", len(byAsker))
	}

	byOther, err := svc.ListClarifications(ctx, other, 1)
	if err != nil {
		t.Fatalf("ListClarifications: %v", err)
	}
	if len(byOther) != 1 {
		t.Errorf("other sees %d clarifications, want only the public one", len(byOther))
	}
	for _, cl := range byOther {
		if cl.ID == private.ID && cl.AuthorID != other.ID {
			t.Error("other user sees a private clarification they did not author")
		}
	}

	answered, err := svc.ReplyClarification(ctx, owner, 1, private.ID, "Yes, use int64", true)
	if err != nil {
		t.Fatalf("ReplyClarification: %v", err)
	}
	if answered.Status != model.ClarificationAnswered || answered.Answer == "" {
		t.Errorf("answered clarification = %+v", answered)
	}

	if _, err := svc.ReplyClarification(ctx, asker, 1, private.ID, "no", false); !appErr.Is(err, appErr.CodeForbidden) {
		t.Errorf("reply by student: code = %s, want FORBIDDEN", appErr.GetCode(err))
	}
}

func TestAnonymousContestVisibility(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	public := examContest()
	store.contests[1] = public

	private := examContest()
	private.ID = 2
	private.Visibility = model.VisibilityPrivate
	store.contests[2] = private

	draft := examContest()
	draft.ID = 3
	draft.Status = model.ContestDraft
	store.contests[3] = draft

	svc := NewService(store)
	svc.now = func() time.Time { return examNow }
	ctx := context.Background()

	anon, err := svc.ListContests(ctx, nil, "visible")
	if err != nil {
		t.Fatalf("anonymous list: %v", err)
	}
	if len(anon) != 1 || anon[0].ID != 1 {
		t.Fatalf("anonymous list = %+v, want only the public published contest", anon)
	}

	student := &model.User{ID: 7, Username: "alpha", Role: model.RoleStudent}
	authed, err := svc.ListContests(ctx, student, "visible")
	if err != nil {
		t.Fatalf("authenticated list: %v", err)
	}
	if len(authed) != 2 {
		t.Fatalf("authenticated list has %d contests, want published public and private", len(authed))
	}
	for _, c := range authed {
		if c.ID == 3 {
			t.Error("authenticated student sees a draft contest")
		}
	}

	got, err := svc.GetContest(ctx, nil, 1)
	if err != nil {
		t.Fatalf("anonymous get public contest: %v", err)
	}
	if got.ID != 1 {
		t.Errorf("anonymous get returned contest %d, want 1", got.ID)
	}

	if _, err := svc.GetContest(ctx, nil, 3); !appErr.Is(err, appErr.CodeContestNotPublished) {
		t.Errorf("anonymous get draft: code = %s, want CONTEST_NOT_PUBLISHED", appErr.GetCode(err))
	}
}
