package scoreboard

import (
	"context"
	"time"

	"ojcore/internal/contest/policy"
	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

// ContestStore supplies the contest-side inputs of a projection.
type ContestStore interface {
	GetContest(ctx context.Context, id int64) (*model.Contest, error)
	ListParticipants(ctx context.Context, contestID int64) ([]model.ContestParticipant, error)
	ListContestProblems(ctx context.Context, contestID int64) ([]model.ContestProblem, error)
}

// SubmissionStore supplies the submission stream of a projection, ordered
// by created_at and excluding scratch runs.
type SubmissionStore interface {
	ListContestStream(ctx context.Context, contestID int64) ([]model.Submission, error)
}

// Directory resolves user ids to usernames and problem ids to titles.
type Directory interface {
	UsernamesByID(ctx context.Context, ids []int64) (map[int64]string, error)
	ProblemTitlesByID(ctx context.Context, ids []int64) (map[int64]string, error)
}

// ProblemColumn is one problem header of the standings payload. Title is
// nil for non-privileged viewers outside export mode.
type ProblemColumn struct {
	ProblemID int64   `json:"problem_id"`
	Label     string  `json:"label"`
	Title     *string `json:"title"`
}

// Standings is the full scoreboard payload.
type Standings struct {
	ContestID int64           `json:"contest_id"`
	Problems  []ProblemColumn `json:"problems"`
	Rows      []Row           `json:"rows"`
}

// Service builds viewer-specific standings.
type Service struct {
	contests    ContestStore
	submissions SubmissionStore
	directory   Directory
	now         func() time.Time
}

// NewService creates the scoreboard service.
func NewService(contests ContestStore, submissions SubmissionStore, directory Directory) *Service {
	return &Service{
		contests:    contests,
		submissions: submissions,
		directory:   directory,
		now:         time.Now,
	}
}

// Standings projects the scoreboard for one viewer. Export mode is
// restricted to privileged viewers and always shows usernames.
func (s *Service) Standings(ctx context.Context, viewer *model.User, contestID int64, export bool) (*Standings, error) {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	privileged := policy.IsPrivileged(viewer, contest)
	if export && !privileged {
		return nil, appErr.ForbiddenError("Scoreboard export requires contest privileges")
	}
	if !privileged {
		if decision := policy.Decide(viewer, contest, nil, policy.IntentViewContest, now); !decision.Allowed {
			return nil, decision.Err()
		}
		if !contest.ScoreboardVisibleDuringContest && !now.After(contest.EndTime) {
			return nil, appErr.New(appErr.CodeScoreboardHidden)
		}
	}

	participants, err := s.contests.ListParticipants(ctx, contestID)
	if err != nil {
		return nil, err
	}
	stream, err := s.submissions.ListContestStream(ctx, contestID)
	if err != nil {
		return nil, err
	}
	rows := Project(contest, participants, stream)

	userIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	usernames, err := s.directory.UsernamesByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	anonymize := contest.AnonymousModeEnabled && !privileged && !export
	for i := range rows {
		username := usernames[rows[i].UserID]
		if anonymize {
			rows[i].DisplayName = rows[i].Nickname
			if rows[i].DisplayName == "" {
				rows[i].DisplayName = username
			}
		} else {
			rows[i].DisplayName = username
		}
		if !export {
			rows[i].Nickname = ""
		}
	}

	problems, err := s.problemColumns(ctx, contestID, privileged || export)
	if err != nil {
		return nil, err
	}
	return &Standings{ContestID: contestID, Problems: problems, Rows: rows}, nil
}

func (s *Service) problemColumns(ctx context.Context, contestID int64, withTitles bool) ([]ProblemColumn, error) {
	labeled, err := s.contests.ListContestProblems(ctx, contestID)
	if err != nil {
		return nil, err
	}
	var titles map[int64]string
	if withTitles {
		ids := make([]int64, 0, len(labeled))
		for _, cp := range labeled {
			ids = append(ids, cp.ProblemID)
		}
		titles, err = s.directory.ProblemTitlesByID(ctx, ids)
		if err != nil {
			return nil, err
		}
	}
	columns := make([]ProblemColumn, 0, len(labeled))
	for _, cp := range labeled {
		column := ProblemColumn{ProblemID: cp.ProblemID, Label: cp.Label}
		if withTitles {
			if title, ok := titles[cp.ProblemID]; ok {
				column.Title = &title
			}
		}
		columns = append(columns, column)
	}
	return columns, nil
}
