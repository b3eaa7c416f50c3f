package policy

import (
	"testing"
	"time"

	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

var (
	contestStart = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	contestEnd   = contestStart.Add(3 * time.Hour)
	duringWindow = contestStart.Add(time.Hour)
)

func publishedContest() *model.Contest {
	return &model.Contest{
		ID:              1,
		Status:          model.ContestPublished,
		Visibility:      model.VisibilityPublic,
		StartTime:       contestStart,
		EndTime:         contestEnd,
		OwnerID:         100,
		AdminIDs:        []int64{101},
		ExamModeEnabled: true,
	}
}

func student(id int64) *model.User {
	return &model.User{ID: id, Username: "student", Role: model.RoleStudent}
}

func inProgressParticipant(userID int64) *model.ContestParticipant {
	return &model.ContestParticipant{ContestID: 1, UserID: userID, ExamStatus: model.ExamInProgress}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		user        *model.User
		mutate      func(*model.Contest)
		participant *model.ContestParticipant
		intent      Intent
		now         time.Time
		wantAllow   bool
		wantCode    appErr.Code
	}{
		{
			name:        "registered in-progress participant may submit",
			user:        student(1),
			participant: inProgressParticipant(1),
			intent:      IntentSubmit,
			now:         duringWindow,
			wantAllow:   true,
		},
		{
			name:      "draft contest denied",
			user:      student(1),
			mutate:    func(c *model.Contest) { c.Status = model.ContestDraft },
			intent:    IntentSubmit,
			now:       duringWindow,
			wantCode:  appErr.CodeContestNotPublished,
		},
		{
			name:      "archived contest denied",
			user:      student(1),
			mutate:    func(c *model.Contest) { c.Status = model.ContestArchived },
			intent:    IntentViewContest,
			now:       duringWindow,
			wantCode:  appErr.CodeContestNotPublished,
		},
		{
			name:        "submit before start denied",
			user:        student(1),
			participant: inProgressParticipant(1),
			intent:      IntentSubmit,
			now:         contestStart.Add(-time.Minute),
			wantCode:    appErr.CodeNotStarted,
		},
		{
			name:        "submit after end denied",
			user:        student(1),
			participant: inProgressParticipant(1),
			intent:      IntentSubmit,
			now:         contestEnd.Add(time.Minute),
			wantCode:    appErr.CodeEnded,
		},
		{
			name:     "view before start denied without early scoreboard",
			user:     student(1),
			intent:   IntentViewContest,
			now:      contestStart.Add(-time.Minute),
			wantCode: appErr.CodeNotStarted,
		},
		{
			name:      "view before start allowed with early scoreboard",
			user:      student(1),
			mutate:    func(c *model.Contest) { c.ScoreboardVisibleDuringContest = true },
			intent:    IntentViewContest,
			now:       contestStart.Add(-time.Minute),
			wantAllow: true,
		},
		{
			name:      "view after end always allowed",
			user:      student(1),
			intent:    IntentViewContest,
			now:       contestEnd.Add(48 * time.Hour),
			wantAllow: true,
		},
		{
			name:     "unregistered user denied",
			user:     student(1),
			intent:   IntentSubmit,
			now:      duringWindow,
			wantCode: appErr.CodeNotRegistered,
		},
		{
			name: "paused exam denied",
			user: student(1),
			participant: &model.ContestParticipant{
				ContestID: 1, UserID: 1, ExamStatus: model.ExamPaused,
			},
			intent:   IntentSubmit,
			now:      duringWindow,
			wantCode: appErr.CodeExamNotInProgress,
		},
		{
			name: "locked exam denied",
			user: student(1),
			participant: &model.ContestParticipant{
				ContestID: 1, UserID: 1, ExamStatus: model.ExamLocked,
			},
			intent:   IntentSubmit,
			now:      duringWindow,
			wantCode: appErr.CodeExamNotInProgress,
		},
		{
			name: "submitted exam denied",
			user: student(1),
			participant: &model.ContestParticipant{
				ContestID: 1, UserID: 1, ExamStatus: model.ExamSubmitted,
			},
			intent:   IntentExamEvent,
			now:      duringWindow,
			wantCode: appErr.CodeExamNotInProgress,
		},
		{
			name: "not started exam denied",
			user: student(1),
			participant: &model.ContestParticipant{
				ContestID: 1, UserID: 1, ExamStatus: model.ExamNotStarted,
			},
			intent:   IntentSubmit,
			now:      duringWindow,
			wantCode: appErr.CodeExamNotInProgress,
		},
		{
			name:   "registration is enough without exam mode",
			user:   student(1),
			mutate: func(c *model.Contest) { c.ExamModeEnabled = false },
			participant: &model.ContestParticipant{
				ContestID: 1, UserID: 1, ExamStatus: model.ExamNotStarted,
			},
			intent:    IntentSubmit,
			now:       duringWindow,
			wantAllow: true,
		},
		{
			name:      "owner bypasses every layer",
			user:      &model.User{ID: 100, Role: model.RoleStudent},
			mutate:    func(c *model.Contest) { c.Status = model.ContestDraft },
			intent:    IntentSubmit,
			now:       contestStart.Add(-time.Hour),
			wantAllow: true,
		},
		{
			name:      "contest admin bypasses every layer",
			user:      &model.User{ID: 101, Role: model.RoleStudent},
			intent:    IntentManage,
			now:       duringWindow,
			wantAllow: true,
		},
		{
			name:      "staff bypasses every layer",
			user:      &model.User{ID: 5, Role: model.RoleStudent, IsStaff: true},
			mutate:    func(c *model.Contest) { c.Status = model.ContestDraft },
			intent:    IntentManage,
			now:       duringWindow,
			wantAllow: true,
		},
		{
			name:      "teacher role bypasses every layer",
			user:      &model.User{ID: 6, Role: model.RoleTeacher},
			intent:    IntentSubmit,
			now:       contestEnd.Add(time.Hour),
			wantAllow: true,
		},
		{
			name:     "student cannot manage",
			user:     student(1),
			intent:   IntentManage,
			now:      duringWindow,
			wantCode: appErr.CodeForbidden,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			contest := publishedContest()
			if tt.mutate != nil {
				tt.mutate(contest)
			}
			got := Decide(tt.user, contest, tt.participant, tt.intent, tt.now)
			if got.Allowed != tt.wantAllow {
				t.Fatalf("Decide allowed = %v, want %v (code=%s)", got.Allowed, tt.wantAllow, got.Code)
			}
			if !tt.wantAllow && got.Code != tt.wantCode {
				t.Errorf("Decide code = %s, want %s", got.Code, tt.wantCode)
			}
		})
	}
}

// Granting a user more privilege must never turn an Allow into a Deny.
func TestPrivilegeMonotonicity(t *testing.T) {
	t.Parallel()

	contest := publishedContest()
	participant := inProgressParticipant(1)
	intents := []Intent{IntentViewContest, IntentSubmit, IntentExamEvent, IntentEndExam}

	for _, intent := range intents {
		base := Decide(student(1), contest, participant, intent, duringWindow)
		if !base.Allowed {
			continue
		}
		elevated := &model.User{ID: 1, Role: model.RoleStudent, IsStaff: true}
		if got := Decide(elevated, contest, participant, intent, duringWindow); !got.Allowed {
			t.Errorf("intent %s: staff version of an allowed user was denied (%s)", intent, got.Code)
		}
	}
}

func TestDecisionErr(t *testing.T) {
	t.Parallel()

	if err := Allow().Err(); err != nil {
		t.Errorf("Allow().Err() = %v, want nil", err)
	}
	err := Deny(appErr.CodeEnded, "").Err()
	if err == nil {
		t.Fatal("Deny().Err() = nil, want error")
	}
	if !appErr.Is(err, appErr.CodeEnded) {
		t.Errorf("denial error code = %s, want ENDED", appErr.GetCode(err))
	}
}
