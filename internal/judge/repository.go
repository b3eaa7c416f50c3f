package judge

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"ojcore/internal/common/db"
	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

// Repository is the judge engine's view of persistent state.
type Repository interface {
	GetSubmission(ctx context.Context, id int64) (*model.Submission, error)
	MarkJudging(ctx context.Context, id int64) error
	GetProblem(ctx context.Context, id int64) (*model.Problem, error)
	// ListTestCases returns the problem's cases in declared order,
	// restricted to samples when samplesOnly is set.
	ListTestCases(ctx context.Context, problemID int64, samplesOnly bool) ([]model.TestCase, error)
	ClearCaseResults(ctx context.Context, submissionID int64) error
	InsertCaseResult(ctx context.Context, result *model.CaseResult) error
	// Finalize writes the terminal verdict under a row lock. It returns
	// false without writing when the submission is already terminal.
	Finalize(ctx context.Context, params FinalizeParams) (bool, error)
	// ListStalled returns ids of submissions that have sat non-terminal
	// longer than olderThan, for the recovery sweep.
	ListStalled(ctx context.Context, olderThan time.Duration, limit int) ([]int64, error)
}

// FinalizeParams is the terminal write of one judge run.
type FinalizeParams struct {
	SubmissionID int64
	Verdict      model.Verdict
	Score        int
	ExecTimeMs   int64
	MemoryKB     int64
	ErrorMessage string
	// BumpCounters is cleared for scratch runs so they never skew
	// problem statistics.
	BumpCounters bool
}

type mysqlRepository struct {
	pool *sql.DB
}

// NewRepository creates the MySQL-backed judge repository.
func NewRepository(pool *sql.DB) Repository {
	return &mysqlRepository{pool: pool}
}

const submissionColumns = `id, user_id, problem_id, contest_id, language, code, created_at,
	source_type, is_test, custom_test_cases, status, score, exec_time_ms, memory_kb, error_message`

func scanSubmission(row *sql.Row) (*model.Submission, error) {
	var sub model.Submission
	var customRaw []byte
	err := row.Scan(&sub.ID, &sub.UserID, &sub.ProblemID, &sub.ContestID, &sub.Language,
		&sub.Code, &sub.CreatedAt, &sub.SourceType, &sub.IsTest, &customRaw,
		&sub.Status, &sub.Score, &sub.ExecTimeMs, &sub.MemoryKB, &sub.ErrorMessage)
	if err != nil {
		return nil, err
	}
	if len(customRaw) > 0 {
		if err := json.Unmarshal(customRaw, &sub.CustomTestCases); err != nil {
			return nil, appErr.Wrapf(err, appErr.CodeDatabase, "decode custom cases of submission %d", sub.ID)
		}
	}
	return &sub, nil
}

func (r *mysqlRepository) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	row := r.pool.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if db.IsNoRows(err) {
		return nil, appErr.NotFoundError("submission")
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return sub, nil
}

func (r *mysqlRepository) MarkJudging(ctx context.Context, id int64) error {
	_, err := r.pool.ExecContext(ctx,
		`UPDATE submissions SET status = ? WHERE id = ? AND status = ?`,
		model.VerdictJudging, id, model.VerdictPending)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	return nil
}

func (r *mysqlRepository) GetProblem(ctx context.Context, id int64) (*model.Problem, error) {
	var p model.Problem
	var forbiddenRaw, requiredRaw []byte
	err := r.pool.QueryRowContext(ctx,
		`SELECT id, title, time_limit_ms, memory_mb, forbidden_keywords, required_keywords,
			practice_visible, contest_only
		FROM problems WHERE id = ?`, id).
		Scan(&p.ID, &p.Title, &p.TimeLimitMs, &p.MemoryMB, &forbiddenRaw, &requiredRaw,
			&p.PracticeVisible, &p.ContestOnly)
	if db.IsNoRows(err) {
		return nil, appErr.NotFoundError("problem")
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	if len(forbiddenRaw) > 0 {
		if err := json.Unmarshal(forbiddenRaw, &p.ForbiddenKeywords); err != nil {
			return nil, appErr.Wrapf(err, appErr.CodeDatabase, "decode forbidden keywords of problem %d", id)
		}
	}
	if len(requiredRaw) > 0 {
		if err := json.Unmarshal(requiredRaw, &p.RequiredKeywords); err != nil {
			return nil, appErr.Wrapf(err, appErr.CodeDatabase, "decode required keywords of problem %d", id)
		}
	}
	return &p, nil
}

func (r *mysqlRepository) ListTestCases(ctx context.Context, problemID int64, samplesOnly bool) ([]model.TestCase, error) {
	query := `SELECT id, problem_id, ordinal, input, expected, score, is_sample
		FROM test_cases WHERE problem_id = ?`
	args := []interface{}{problemID}
	if samplesOnly {
		query += ` AND is_sample = 1`
	}
	query += ` ORDER BY ordinal ASC`

	rows, err := r.pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()

	var cases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Ordinal, &tc.Input, &tc.Expected,
			&tc.Score, &tc.IsSample); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeDatabase)
		}
		cases = append(cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return cases, nil
}

func (r *mysqlRepository) ClearCaseResults(ctx context.Context, submissionID int64) error {
	_, err := r.pool.ExecContext(ctx,
		`DELETE FROM case_results WHERE submission_id = ?`, submissionID)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	return nil
}

func (r *mysqlRepository) InsertCaseResult(ctx context.Context, result *model.CaseResult) error {
	_, err := r.pool.ExecContext(ctx,
		`INSERT INTO case_results (submission_id, ordinal, test_case_id, verdict, time_ms, memory_kb, score, is_custom)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.SubmissionID, result.Ordinal, result.TestCaseID, result.Verdict,
		result.TimeMs, result.MemoryKB, result.Score, result.IsCustom)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	return nil
}

func (r *mysqlRepository) Finalize(ctx context.Context, params FinalizeParams) (bool, error) {
	finalized := false
	err := db.WithTx(ctx, r.pool, func(tx *sql.Tx) error {
		var status model.Verdict
		var problemID int64
		err := tx.QueryRowContext(ctx,
			`SELECT status, problem_id FROM submissions WHERE id = ? FOR UPDATE`,
			params.SubmissionID).Scan(&status, &problemID)
		if db.IsNoRows(err) {
			return appErr.NotFoundError("submission")
		}
		if err != nil {
			return appErr.Wrap(err, appErr.CodeDatabase)
		}
		if status.IsTerminal() {
			// Another worker won the race; this run no-ops.
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE submissions SET status = ?, score = ?, exec_time_ms = ?, memory_kb = ?, error_message = ?
			WHERE id = ?`,
			params.Verdict, params.Score, params.ExecTimeMs, params.MemoryKB,
			params.ErrorMessage, params.SubmissionID)
		if err != nil {
			return appErr.Wrap(err, appErr.CodeDatabase)
		}

		if params.BumpCounters {
			if column := statsColumn(params.Verdict); column != "" {
				_, err = tx.ExecContext(ctx,
					`INSERT INTO problem_stats (problem_id, `+column+`) VALUES (?, 1)
					ON DUPLICATE KEY UPDATE `+column+` = `+column+` + 1`,
					problemID)
				if err != nil {
					return appErr.Wrap(err, appErr.CodeDatabase)
				}
			}
		}
		finalized = true
		return nil
	})
	return finalized, err
}

// statsColumn maps a terminal verdict onto its counter column; verdicts
// outside the counted set (SE, KR) return "".
func statsColumn(v model.Verdict) string {
	switch v {
	case model.VerdictAC:
		return "accepted"
	case model.VerdictWA:
		return "wa"
	case model.VerdictTLE:
		return "tle"
	case model.VerdictMLE:
		return "mle"
	case model.VerdictRE:
		return "re"
	case model.VerdictCE:
		return "ce"
	default:
		return ""
	}
}

func (r *mysqlRepository) ListStalled(ctx context.Context, olderThan time.Duration, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().Add(-olderThan)
	rows, err := r.pool.QueryContext(ctx,
		`SELECT id FROM submissions WHERE status IN (?, ?) AND created_at < ?
		ORDER BY created_at ASC LIMIT ?`,
		model.VerdictPending, model.VerdictJudging, cutoff, limit)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeDatabase)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return ids, nil
}
