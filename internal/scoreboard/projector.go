// Package scoreboard derives contest standings from the immutable
// submission stream. The scoreboard is never stored; every request
// projects it fresh.
package scoreboard

import (
	"sort"

	"ojcore/internal/model"
)

// PenaltyPerTry is the minutes added for every failed try before the
// accepted one.
const PenaltyPerTry = 20

// Cell is one (participant, problem) square.
type Cell struct {
	ProblemID   int64         `json:"problem_id"`
	Status      model.Verdict `json:"status,omitempty"`
	Pending     bool          `json:"pending"`
	Tries       int           `json:"tries"`
	TimeMinutes int           `json:"time_minutes"`
	Score       int           `json:"score"`
}

// Row is one participant's standing.
type Row struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Nickname    string `json:"nickname,omitempty"`
	Rank        int    `json:"rank"`
	Solved      int    `json:"solved"`
	TotalScore  int    `json:"total_score"`
	TimePenalty int    `json:"time_penalty"`

	Cells map[int64]*Cell `json:"cells"`
}

// Project runs a single chronological pass over the contest's non-test
// submissions. Rows are seeded from the registrations so zero-activity
// participants appear. Submissions must be ordered by created_at.
func Project(contest *model.Contest, participants []model.ContestParticipant,
	submissions []model.Submission) []Row {

	rows := make(map[int64]*Row, len(participants))
	for _, p := range participants {
		rows[p.UserID] = &Row{
			UserID:   p.UserID,
			Nickname: p.Nickname,
			Cells:    make(map[int64]*Cell),
		}
	}

	for _, sub := range submissions {
		if sub.IsTest {
			continue
		}
		row, ok := rows[sub.UserID]
		if !ok {
			// Submission from a user no longer registered; not a standing.
			continue
		}
		cell, ok := row.Cells[sub.ProblemID]
		if !ok {
			cell = &Cell{ProblemID: sub.ProblemID}
			row.Cells[sub.ProblemID] = cell
		}
		if cell.Status == model.VerdictAC {
			continue
		}
		if sub.Status == model.VerdictPending || sub.Status == model.VerdictJudging {
			cell.Pending = true
			continue
		}

		cell.Tries++
		if sub.Status == model.VerdictAC {
			cell.Status = model.VerdictAC
			cell.TimeMinutes = int(sub.CreatedAt.Sub(contest.StartTime).Minutes())
			row.Solved++
			row.TimePenalty += cell.TimeMinutes + PenaltyPerTry*(cell.Tries-1)
			row.TotalScore += sub.Score - cell.Score
			cell.Score = sub.Score
			continue
		}
		cell.Status = sub.Status
		if sub.Score > cell.Score {
			row.TotalScore += sub.Score - cell.Score
			cell.Score = sub.Score
		}
	}

	standings := make([]Row, 0, len(rows))
	for _, row := range rows {
		standings = append(standings, *row)
	}
	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.Solved != b.Solved {
			return a.Solved > b.Solved
		}
		if a.TimePenalty != b.TimePenalty {
			return a.TimePenalty < b.TimePenalty
		}
		return a.UserID < b.UserID
	})

	// Dense ranks: ties share a rank and the next distinct key follows
	// immediately.
	for i := range standings {
		if i == 0 {
			standings[i].Rank = 1
			continue
		}
		prev, cur := standings[i-1], standings[i]
		if cur.TotalScore == prev.TotalScore && cur.Solved == prev.Solved && cur.TimePenalty == prev.TimePenalty {
			standings[i].Rank = prev.Rank
		} else {
			standings[i].Rank = prev.Rank + 1
		}
	}
	return standings
}
