package scoreboard

import (
	"testing"
	"time"

	"ojcore/internal/model"
)

var boardStart = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func boardContest() *model.Contest {
	return &model.Contest{
		ID:        1,
		Status:    model.ContestPublished,
		StartTime: boardStart,
		EndTime:   boardStart.Add(5 * time.Hour),
	}
}

func contestSub(user int64, problem int64, at time.Duration, verdict model.Verdict, score int) model.Submission {
	contestID := int64(1)
	return model.Submission{
		UserID:     user,
		ProblemID:  problem,
		ContestID:  &contestID,
		CreatedAt:  boardStart.Add(at),
		SourceType: model.SourceContest,
		Status:     verdict,
		Score:      score,
	}
}

func twoParticipants() []model.ContestParticipant {
	return []model.ContestParticipant{
		{ContestID: 1, UserID: 1, Nickname: "alpha"},
		{ContestID: 1, UserID: 2, Nickname: "beta"},
	}
}

func TestProjectPenaltyOrdering(t *testing.T) {
	t.Parallel()

	// P1 solves at +10 cleanly; P2 solves at +5 after one wrong try.
	subs := []model.Submission{
		contestSub(2, 10, 2*time.Minute, model.VerdictWA, 0),
		contestSub(2, 10, 5*time.Minute, model.VerdictAC, 100),
		contestSub(1, 10, 10*time.Minute, model.VerdictAC, 100),
	}
	rows := Project(boardContest(), twoParticipants(), subs)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	first, second := rows[0], rows[1]
	if first.UserID != 1 || second.UserID != 2 {
		t.Fatalf("order = [%d, %d], want P1 before P2", first.UserID, second.UserID)
	}
	if first.TimePenalty != 10 {
		t.Errorf("P1 penalty = %d, want 10", first.TimePenalty)
	}
	if second.TimePenalty != 25 {
		t.Errorf("P2 penalty = %d, want 5 + 20 = 25", second.TimePenalty)
	}
	if first.TotalScore != 100 || second.TotalScore != 100 || first.Solved != 1 || second.Solved != 1 {
		t.Errorf("scores = (%d, %d), solved = (%d, %d), want both 100 and 1",
			first.TotalScore, second.TotalScore, first.Solved, second.Solved)
	}
	if first.Rank != 1 || second.Rank != 2 {
		t.Errorf("ranks = (%d, %d), want (1, 2)", first.Rank, second.Rank)
	}
}

func TestProjectSubmissionsAfterACIgnored(t *testing.T) {
	t.Parallel()

	subs := []model.Submission{
		contestSub(1, 10, 5*time.Minute, model.VerdictAC, 100),
		contestSub(1, 10, 20*time.Minute, model.VerdictWA, 0),
		contestSub(1, 10, 30*time.Minute, model.VerdictAC, 100),
	}
	rows := Project(boardContest(), twoParticipants(), subs)
	row := rows[0]
	cell := row.Cells[10]
	if cell.Tries != 1 {
		t.Errorf("tries = %d, want 1 (post-AC submissions ignored)", cell.Tries)
	}
	if row.TimePenalty != 5 {
		t.Errorf("penalty = %d, want 5", row.TimePenalty)
	}
	if row.TotalScore != 100 {
		t.Errorf("total = %d, want 100", row.TotalScore)
	}
}

func TestProjectPendingFlagWithoutTry(t *testing.T) {
	t.Parallel()

	subs := []model.Submission{
		contestSub(1, 10, 5*time.Minute, model.VerdictJudging, 0),
	}
	rows := Project(boardContest(), twoParticipants(), subs)
	var row Row
	for _, r := range rows {
		if r.UserID == 1 {
			row = r
		}
	}
	cell := row.Cells[10]
	if !cell.Pending {
		t.Error("cell should be flagged pending")
	}
	if cell.Tries != 0 {
		t.Errorf("tries = %d, want 0 for an unjudged submission", cell.Tries)
	}
}

func TestProjectPartialScoreKeepsMax(t *testing.T) {
	t.Parallel()

	subs := []model.Submission{
		contestSub(1, 10, 5*time.Minute, model.VerdictWA, 40),
		contestSub(1, 10, 10*time.Minute, model.VerdictTLE, 70),
		contestSub(1, 10, 15*time.Minute, model.VerdictWA, 30),
	}
	rows := Project(boardContest(), twoParticipants(), subs)
	var row Row
	for _, r := range rows {
		if r.UserID == 1 {
			row = r
		}
	}
	if row.TotalScore != 70 {
		t.Errorf("total = %d, want running max 70", row.TotalScore)
	}
	cell := row.Cells[10]
	if cell.Score != 70 || cell.Tries != 3 {
		t.Errorf("cell = %+v, want score 70 after 3 tries", cell)
	}
	if cell.Status != model.VerdictWA {
		t.Errorf("cell status = %s, want latest non-AC verdict WA", cell.Status)
	}
	if row.Solved != 0 || row.TimePenalty != 0 {
		t.Errorf("solved = %d, penalty = %d, want 0 without an AC", row.Solved, row.TimePenalty)
	}
}

func TestProjectScratchRunsExcluded(t *testing.T) {
	t.Parallel()

	scratch := contestSub(1, 10, 5*time.Minute, model.VerdictAC, 100)
	scratch.IsTest = true
	rows := Project(boardContest(), twoParticipants(), []model.Submission{scratch})
	for _, row := range rows {
		if len(row.Cells) != 0 {
			t.Errorf("user %d has cells from a scratch run: %+v", row.UserID, row.Cells)
		}
	}
}

func TestProjectSeedsZeroActivityParticipants(t *testing.T) {
	t.Parallel()

	rows := Project(boardContest(), twoParticipants(), nil)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 zero-activity participants", len(rows))
	}
	for _, row := range rows {
		if row.Rank != 1 {
			t.Errorf("user %d rank = %d, want shared rank 1", row.UserID, row.Rank)
		}
	}
}

func TestProjectDenseRanks(t *testing.T) {
	t.Parallel()

	participants := append(twoParticipants(), model.ContestParticipant{ContestID: 1, UserID: 3, Nickname: "gamma"})
	subs := []model.Submission{
		contestSub(1, 10, 5*time.Minute, model.VerdictAC, 100),
		contestSub(2, 10, 5*time.Minute, model.VerdictAC, 100),
		contestSub(3, 10, 30*time.Minute, model.VerdictAC, 100),
	}
	rows := Project(boardContest(), participants, subs)
	if rows[0].Rank != 1 || rows[1].Rank != 1 {
		t.Errorf("tied ranks = (%d, %d), want (1, 1)", rows[0].Rank, rows[1].Rank)
	}
	if rows[2].Rank != 2 {
		t.Errorf("next rank = %d, want dense 2", rows[2].Rank)
	}
}

// The projection is a pure function of its snapshot.
func TestProjectDeterministic(t *testing.T) {
	t.Parallel()

	subs := []model.Submission{
		contestSub(2, 10, 2*time.Minute, model.VerdictWA, 10),
		contestSub(2, 10, 5*time.Minute, model.VerdictAC, 100),
		contestSub(1, 11, 8*time.Minute, model.VerdictTLE, 30),
		contestSub(1, 10, 10*time.Minute, model.VerdictAC, 100),
	}
	first := Project(boardContest(), twoParticipants(), subs)
	for i := 0; i < 5; i++ {
		again := Project(boardContest(), twoParticipants(), subs)
		if len(again) != len(first) {
			t.Fatalf("projection size changed between runs")
		}
		for j := range first {
			if first[j].UserID != again[j].UserID || first[j].Rank != again[j].Rank ||
				first[j].TotalScore != again[j].TotalScore || first[j].TimePenalty != again[j].TimePenalty {
				t.Fatalf("projection differs between runs: %+v vs %+v", first[j], again[j])
			}
		}
	}
}
