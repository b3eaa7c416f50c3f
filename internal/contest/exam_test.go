package contest

import (
	"context"
	"testing"
	"time"

	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

var (
	examStart = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	examNow   = examStart.Add(time.Hour)
)

func examContest() *model.Contest {
	return &model.Contest{
		ID:               1,
		Status:           model.ContestPublished,
		Visibility:       model.VisibilityPublic,
		StartTime:        examStart,
		EndTime:          examStart.Add(3 * time.Hour),
		OwnerID:          100,
		ExamModeEnabled:  true,
		MaxCheatWarnings: 2,
	}
}

func newExamFixture(t *testing.T, status model.ExamStatus) (*ExamService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.contests[1] = examContest()
	store.participants[participantKey(1, 7)] = &model.ContestParticipant{
		ID: 1, ContestID: 1, UserID: 7, Nickname: "alpha",
		JoinedAt: examStart, ExamStatus: status,
	}
	svc := NewExamService(store)
	svc.now = func() time.Time { return examNow }
	return svc, store
}

func examinee() *model.User {
	return &model.User{ID: 7, Username: "alpha", Role: model.RoleStudent}
}

func TestStartExamStampsStartedAtOnce(t *testing.T) {
	t.Parallel()

	svc, store := newExamFixture(t, model.ExamNotStarted)
	ctx := context.Background()

	p, err := svc.StartExam(ctx, examinee(), 1)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	if p.ExamStatus != model.ExamInProgress {
		t.Errorf("status = %s, want in_progress", p.ExamStatus)
	}
	if p.StartedAt == nil || !p.StartedAt.Equal(examNow) {
		t.Errorf("started_at = %v, want %v", p.StartedAt, examNow)
	}

	// Pause, then resume with a later clock; started_at must not move.
	if _, err := svc.PauseExam(ctx, examinee(), 1); err != nil {
		t.Fatalf("PauseExam: %v", err)
	}
	svc.now = func() time.Time { return examNow.Add(30 * time.Minute) }
	resumed, err := svc.StartExam(ctx, examinee(), 1)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !resumed.StartedAt.Equal(examNow) {
		t.Errorf("started_at moved on resume: %v", resumed.StartedAt)
	}
	saved, _ := store.GetParticipant(ctx, 1, 7)
	if saved.ExamStatus != model.ExamInProgress {
		t.Errorf("persisted status = %s, want in_progress", saved.ExamStatus)
	}
}

func TestStartExamInvalidStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		from     model.ExamStatus
		wantCode appErr.Code
	}{
		{name: "already running", from: model.ExamInProgress, wantCode: appErr.CodeConflict},
		{name: "locked", from: model.ExamLocked, wantCode: appErr.CodeExamLocked},
		{name: "submitted", from: model.ExamSubmitted, wantCode: appErr.CodeExamSubmitted},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, _ := newExamFixture(t, tt.from)
			_, err := svc.StartExam(context.Background(), examinee(), 1)
			if !appErr.Is(err, tt.wantCode) {
				t.Errorf("StartExam from %s: code = %s, want %s", tt.from, appErr.GetCode(err), tt.wantCode)
			}
		})
	}
}

func TestEndExamRequiresInProgress(t *testing.T) {
	t.Parallel()

	svc, _ := newExamFixture(t, model.ExamInProgress)
	p, err := svc.EndExam(context.Background(), examinee(), 1)
	if err != nil {
		t.Fatalf("EndExam: %v", err)
	}
	if p.ExamStatus != model.ExamSubmitted {
		t.Errorf("status = %s, want submitted", p.ExamStatus)
	}

	svcPaused, _ := newExamFixture(t, model.ExamPaused)
	if _, err := svcPaused.EndExam(context.Background(), examinee(), 1); !appErr.Is(err, appErr.CodeExamNotInProgress) {
		t.Errorf("EndExam while paused: code = %s, want EXAM_NOT_IN_PROGRESS", appErr.GetCode(err))
	}
}

func TestLogEventLockBoundary(t *testing.T) {
	t.Parallel()

	// max_cheat_warnings = 2: the first two violations warn, the third
	// locks.
	svc, store := newExamFixture(t, model.ExamInProgress)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		p, err := svc.LogEvent(ctx, examinee(), 1, "tab_hidden")
		if err != nil {
			t.Fatalf("LogEvent %d: %v", i, err)
		}
		if p.ExamStatus != model.ExamInProgress {
			t.Fatalf("after %d events status = %s, want in_progress", i, p.ExamStatus)
		}
		if p.ViolationCount != i {
			t.Fatalf("violation_count = %d, want %d", p.ViolationCount, i)
		}
	}

	p, err := svc.LogEvent(ctx, examinee(), 1, "tab_hidden")
	if err != nil {
		t.Fatalf("LogEvent 3: %v", err)
	}
	if p.ExamStatus != model.ExamLocked {
		t.Errorf("after 3 events status = %s, want locked", p.ExamStatus)
	}
	if p.LockedAt == nil {
		t.Error("locked_at should be stamped on lock")
	}
	if p.ViolationCount != 3 {
		t.Errorf("violation_count = %d, want 3", p.ViolationCount)
	}

	// A locked participant can no longer log events.
	if _, err := svc.LogEvent(ctx, examinee(), 1, "copy"); !appErr.Is(err, appErr.CodeExamNotInProgress) {
		t.Errorf("LogEvent while locked: code = %s, want EXAM_NOT_IN_PROGRESS", appErr.GetCode(err))
	}
	if len(store.events) != 3 {
		t.Errorf("recorded events = %d, want 3", len(store.events))
	}
}

func TestLogEventUnknownTypeCountsAsOther(t *testing.T) {
	t.Parallel()

	svc, store := newExamFixture(t, model.ExamInProgress)
	p, err := svc.LogEvent(context.Background(), examinee(), 1, "shouted_answer")
	if err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if p.ViolationCount != 1 {
		t.Errorf("violation_count = %d, want 1", p.ViolationCount)
	}
	if len(store.events) != 1 || store.events[0] != model.EventOther {
		t.Errorf("recorded events = %v, want [other]", store.events)
	}
}

func TestUnlockAndReopenRequirePrivilege(t *testing.T) {
	t.Parallel()

	svc, _ := newExamFixture(t, model.ExamLocked)
	ctx := context.Background()

	if _, err := svc.Unlock(ctx, examinee(), 1, 7); err == nil {
		t.Fatal("Unlock by the participant themselves should be denied")
	}

	owner := &model.User{ID: 100, Username: "owner", Role: model.RoleTeacher}
	p, err := svc.Unlock(ctx, owner, 1, 7)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if p.ExamStatus != model.ExamPaused {
		t.Errorf("status after unlock = %s, want paused", p.ExamStatus)
	}
	if p.LockedAt != nil {
		t.Error("locked_at should be cleared on unlock")
	}

	svcSubmitted, _ := newExamFixture(t, model.ExamSubmitted)
	reopened, err := svcSubmitted.Reopen(ctx, owner, 1, 7)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if reopened.ExamStatus != model.ExamPaused {
		t.Errorf("status after reopen = %s, want paused", reopened.ExamStatus)
	}
}

func TestAutoUnlock(t *testing.T) {
	t.Parallel()

	lockedAt := examNow.Add(-20 * time.Minute)

	tests := []struct {
		name        string
		allow       bool
		unlockAfter int
		wantStatus  model.ExamStatus
	}{
		{name: "due", allow: true, unlockAfter: 15, wantStatus: model.ExamPaused},
		{name: "not yet due", allow: true, unlockAfter: 30, wantStatus: model.ExamLocked},
		{name: "disabled", allow: false, unlockAfter: 15, wantStatus: model.ExamLocked},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, store := newExamFixture(t, model.ExamLocked)
			contest := store.contests[1]
			contest.AllowAutoUnlock = tt.allow
			contest.AutoUnlockMinutes = tt.unlockAfter
			p := store.participants[participantKey(1, 7)]
			at := lockedAt
			p.LockedAt = &at
			p.ViolationCount = 3

			got, err := svc.ParticipantState(context.Background(), examinee(), 1)
			if err != nil {
				t.Fatalf("ParticipantState: %v", err)
			}
			if got.ExamStatus != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.ExamStatus, tt.wantStatus)
			}
			if got.ViolationCount != 3 {
				t.Errorf("violation_count = %d, want unchanged 3", got.ViolationCount)
			}
		})
	}
}

func TestAutoUnlockIdempotent(t *testing.T) {
	t.Parallel()

	svc, store := newExamFixture(t, model.ExamLocked)
	contest := store.contests[1]
	contest.AllowAutoUnlock = true
	contest.AutoUnlockMinutes = 10
	lockedAt := examNow.Add(-time.Hour)
	p := store.participants[participantKey(1, 7)]
	p.LockedAt = &lockedAt
	p.ViolationCount = 3

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		got, err := svc.ParticipantState(ctx, examinee(), 1)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if got.ExamStatus != model.ExamPaused {
			t.Fatalf("read %d: status = %s, want paused", i, got.ExamStatus)
		}
		if got.ViolationCount != 3 {
			t.Fatalf("read %d: violation_count = %d, want 3", i, got.ViolationCount)
		}
	}
}

func TestExamGateDeniesOutsideWindow(t *testing.T) {
	t.Parallel()

	svc, _ := newExamFixture(t, model.ExamNotStarted)
	svc.now = func() time.Time { return examStart.Add(-time.Minute) }
	if _, err := svc.StartExam(context.Background(), examinee(), 1); !appErr.Is(err, appErr.CodeNotStarted) {
		t.Errorf("StartExam before window: code = %s, want NOT_STARTED", appErr.GetCode(err))
	}

	svc2, _ := newExamFixture(t, model.ExamInProgress)
	svc2.now = func() time.Time { return examStart.Add(4 * time.Hour) }
	if _, err := svc2.LogEvent(context.Background(), examinee(), 1, "copy"); !appErr.Is(err, appErr.CodeEnded) {
		t.Errorf("LogEvent after window: code = %s, want ENDED", appErr.GetCode(err))
	}
}
