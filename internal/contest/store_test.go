package contest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

// fakeStore is an in-memory Store and ExamStore for service tests.
type fakeStore struct {
	mu sync.Mutex

	contests       map[int64]*model.Contest
	participants   map[string]*model.ContestParticipant
	admins         map[int64][]int64
	clarifications map[int64]*model.Clarification
	nextClarID     int64
	events         []model.ViolationEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contests:       make(map[int64]*model.Contest),
		participants:   make(map[string]*model.ContestParticipant),
		admins:         make(map[int64][]int64),
		clarifications: make(map[int64]*model.Clarification),
	}
}

func participantKey(contestID, userID int64) string {
	return fmt.Sprintf("%d/%d", contestID, userID)
}

func (f *fakeStore) GetContest(ctx context.Context, id int64) (*model.Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contests[id]
	if !ok {
		return nil, appErr.NotFoundError("contest")
	}
	copied := *c
	copied.AdminIDs = append([]int64(nil), f.admins[id]...)
	return &copied, nil
}

func (f *fakeStore) ListVisible(ctx context.Context, user *model.User) ([]model.Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Contest
	for _, c := range f.contests {
		switch {
		case user != nil && user.IsPrivilegedRole():
		case user != nil:
			if c.Status != model.ContestPublished {
				continue
			}
		default:
			if c.Status != model.ContestPublished || c.Visibility != model.VisibilityPublic {
				continue
			}
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) ListManaged(ctx context.Context, user *model.User) ([]model.Contest, error) {
	if user == nil {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Contest
	for id, c := range f.contests {
		admin := false
		for _, uid := range f.admins[id] {
			if uid == user.ID {
				admin = true
			}
		}
		if user.IsStaff || c.OwnerID == user.ID || admin {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListParticipated(ctx context.Context, user *model.User) ([]model.Contest, error) {
	if user == nil {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Contest
	for id, c := range f.contests {
		if _, ok := f.participants[participantKey(id, user.ID)]; !ok {
			continue
		}
		if c.Status == model.ContestDraft && !user.IsPrivilegedRole() {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) GetParticipant(ctx context.Context, contestID, userID int64) (*model.ContestParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[participantKey(contestID, userID)]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) CreateParticipant(ctx context.Context, p *model.ContestParticipant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := participantKey(p.ContestID, p.UserID)
	if _, exists := f.participants[key]; exists {
		return appErr.Conflict("Already registered")
	}
	p.ID = int64(len(f.participants) + 1)
	copied := *p
	f.participants[key] = &copied
	return nil
}

func (f *fakeStore) SetParticipantPresence(ctx context.Context, contestID, userID int64, leftAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[participantKey(contestID, userID)]
	if !ok {
		return appErr.NotFoundError("participant")
	}
	p.LeftAt = leftAt
	return nil
}

func (f *fakeStore) WithParticipantLock(ctx context.Context, contestID, userID int64,
	fn func(p *model.ContestParticipant) (*model.ContestParticipant, error)) error {

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[participantKey(contestID, userID)]
	if !ok {
		return appErr.New(appErr.CodeNotRegistered)
	}
	copied := *p
	updated, err := fn(&copied)
	if err != nil {
		return err
	}
	if updated != nil {
		saved := *updated
		f.participants[participantKey(contestID, userID)] = &saved
	}
	return nil
}

func (f *fakeStore) RecordExamEvent(ctx context.Context, contestID, userID int64, event model.ViolationEvent, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) ListAdminIDs(ctx context.Context, contestID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.admins[contestID]...), nil
}

func (f *fakeStore) AddAdmin(ctx context.Context, contestID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.admins[contestID] {
		if id == userID {
			return appErr.Conflict("Already admin")
		}
	}
	f.admins[contestID] = append(f.admins[contestID], userID)
	return nil
}

func (f *fakeStore) RemoveAdmin(ctx context.Context, contestID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.admins[contestID]
	for i, id := range ids {
		if id == userID {
			f.admins[contestID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return appErr.NotFoundError("contest admin")
}

func (f *fakeStore) CreateClarification(ctx context.Context, cl *model.Clarification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextClarID++
	cl.ID = f.nextClarID
	cl.Status = model.ClarificationPending
	copied := *cl
	f.clarifications[cl.ID] = &copied
	return nil
}

func (f *fakeStore) GetClarification(ctx context.Context, id int64) (*model.Clarification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cl, ok := f.clarifications[id]
	if !ok {
		return nil, appErr.NotFoundError("clarification")
	}
	copied := *cl
	return &copied, nil
}

func (f *fakeStore) ListClarifications(ctx context.Context, contestID int64) ([]model.Clarification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []model.Clarification
	for _, cl := range f.clarifications {
		if cl.ContestID == contestID {
			list = append(list, *cl)
		}
	}
	return list, nil
}

func (f *fakeStore) AnswerClarification(ctx context.Context, id int64, answer string, isPublic bool, answeredAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cl, ok := f.clarifications[id]
	if !ok {
		return appErr.NotFoundError("clarification")
	}
	cl.Answer = answer
	cl.IsPublic = isPublic
	cl.Status = model.ClarificationAnswered
	cl.AnsweredAt = &answeredAt
	return nil
}
