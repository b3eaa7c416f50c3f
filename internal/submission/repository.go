// Package submission owns the intake path: keyword gating, persistence
// of the append-only submission table, and the judge-task handoff.
package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ojcore/internal/common/db"
	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

// Filter narrows a submission listing. Zero fields are not applied.
type Filter struct {
	SourceType   model.SourceType
	Status       model.Verdict
	UserID       int64
	ProblemID    int64
	ContestID    int64
	CreatedAfter *time.Time

	// IncludeAll lifts the default three-month window. Without it and
	// without CreatedAfter, listings cover the last 90 days only.
	IncludeAll bool

	Page     int
	PageSize int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultWindow   = 90 * 24 * time.Hour
)

func (f *Filter) normalize(now time.Time) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	if f.CreatedAfter == nil && !f.IncludeAll {
		cutoff := now.Add(-defaultWindow)
		f.CreatedAfter = &cutoff
	}
}

// Repository is the MySQL store behind intake and listings.
type Repository struct {
	pool *sql.DB
	now  func() time.Time
}

// NewRepository creates the submission repository.
func NewRepository(pool *sql.DB) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

const submissionColumns = `id, user_id, problem_id, contest_id, language, code, created_at,
	source_type, is_test, custom_test_cases, status, score, exec_time_ms, memory_kb, error_message`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
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

// Create inserts one submission row and fills its id and created_at.
// The table is append-only; nothing here ever updates or deletes.
func (r *Repository) Create(ctx context.Context, sub *model.Submission) error {
	customRaw, err := json.Marshal(sub.CustomTestCases)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	sub.CreatedAt = r.now()
	res, err := r.pool.ExecContext(ctx,
		`INSERT INTO submissions
			(user_id, problem_id, contest_id, language, code, created_at,
			source_type, is_test, custom_test_cases, status, score, exec_time_ms, memory_kb, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.UserID, sub.ProblemID, sub.ContestID, sub.Language, sub.Code, sub.CreatedAt,
		sub.SourceType, sub.IsTest, customRaw, sub.Status, sub.Score,
		sub.ExecTimeMs, sub.MemoryKB, sub.ErrorMessage)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	sub.ID = id
	return nil
}

// GetByID returns one submission with its code.
func (r *Repository) GetByID(ctx context.Context, id int64) (*model.Submission, error) {
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

// List returns one page of submissions plus the total match count.
func (r *Repository) List(ctx context.Context, filter Filter) ([]model.Submission, int64, error) {
	filter.normalize(r.now())

	var conds []string
	var args []interface{}
	if filter.SourceType != "" {
		conds = append(conds, "source_type = ?")
		args = append(args, filter.SourceType)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.UserID > 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ProblemID > 0 {
		conds = append(conds, "problem_id = ?")
		args = append(args, filter.ProblemID)
	}
	if filter.ContestID > 0 {
		conds = append(conds, "contest_id = ?")
		args = append(args, filter.ContestID)
	}
	if filter.CreatedAfter != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *filter.CreatedAfter)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var count int64
	if err := r.pool.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM submissions"+where, args...).Scan(&count); err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeDatabase)
	}

	offset := (filter.Page - 1) * filter.PageSize
	query := fmt.Sprintf("SELECT %s FROM submissions%s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		submissionColumns, where)
	rows, err := r.pool.QueryContext(ctx, query, append(args, filter.PageSize, offset)...)
	if err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, appErr.Wrap(err, appErr.CodeDatabase)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return subs, count, nil
}

// ListContestStream returns a contest's non-scratch submissions in
// chronological order, the shape the scoreboard projector consumes.
func (r *Repository) ListContestStream(ctx context.Context, contestID int64) ([]model.Submission, error) {
	rows, err := r.pool.QueryContext(ctx,
		`SELECT `+submissionColumns+`
		FROM submissions
		WHERE contest_id = ? AND source_type = ? AND is_test = FALSE
		ORDER BY created_at ASC, id ASC`,
		contestID, model.SourceContest)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, appErr.Wrap(err, appErr.CodeDatabase)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return subs, nil
}

// ListCaseResults returns the per-case rows of one submission in case
// order, for privileged detail views.
func (r *Repository) ListCaseResults(ctx context.Context, submissionID int64) ([]model.CaseResult, error) {
	rows, err := r.pool.QueryContext(ctx,
		`SELECT submission_id, ordinal, test_case_id, verdict, time_ms, memory_kb, score, is_custom
		FROM case_results WHERE submission_id = ? ORDER BY ordinal ASC`, submissionID)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()

	var results []model.CaseResult
	for rows.Next() {
		var cr model.CaseResult
		if err := rows.Scan(&cr.SubmissionID, &cr.Ordinal, &cr.TestCaseID, &cr.Verdict,
			&cr.TimeMs, &cr.MemoryKB, &cr.Score, &cr.IsCustom); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeDatabase)
		}
		results = append(results, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return results, nil
}

// GetProblem loads the keyword gates and limits intake needs.
func (r *Repository) GetProblem(ctx context.Context, id int64) (*model.Problem, error) {
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
