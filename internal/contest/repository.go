// Package contest implements contest access, registration, the exam state
// machine and clarifications.
package contest

import (
	"context"
	"database/sql"
	"time"

	"ojcore/internal/common/db"
	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

// Repository is the MySQL access layer shared by the contest services.
type Repository struct {
	pool *sql.DB
}

// NewRepository creates the contest repository.
func NewRepository(pool *sql.DB) *Repository {
	return &Repository{pool: pool}
}

const contestColumns = `id, title, status, visibility, password_hash, start_time, end_time, owner_id,
	scoreboard_visible_during_contest, anonymous_mode_enabled, exam_mode_enabled,
	allow_auto_unlock, auto_unlock_minutes, allow_multiple_joins, max_cheat_warnings`

func scanContest(scanner interface{ Scan(...interface{}) error }) (*model.Contest, error) {
	var c model.Contest
	err := scanner.Scan(&c.ID, &c.Title, &c.Status, &c.Visibility, &c.PasswordHash,
		&c.StartTime, &c.EndTime, &c.OwnerID,
		&c.ScoreboardVisibleDuringContest, &c.AnonymousModeEnabled, &c.ExamModeEnabled,
		&c.AllowAutoUnlock, &c.AutoUnlockMinutes, &c.AllowMultipleJoins, &c.MaxCheatWarnings)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContest loads a contest with its admin roster.
func (r *Repository) GetContest(ctx context.Context, id int64) (*model.Contest, error) {
	row := r.pool.QueryRowContext(ctx, `SELECT `+contestColumns+` FROM contests WHERE id = ?`, id)
	contest, err := scanContest(row)
	if db.IsNoRows(err) {
		return nil, appErr.NotFoundError("contest")
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	contest.AdminIDs, err = r.ListAdminIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return contest, nil
}

// ListAdminIDs returns the admin roster of a contest.
func (r *Repository) ListAdminIDs(ctx context.Context, contestID int64) ([]int64, error) {
	rows, err := r.pool.QueryContext(ctx,
		`SELECT user_id FROM contest_admins WHERE contest_id = ? ORDER BY user_id`, contestID)
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

// AddAdmin inserts a user into the roster. A duplicate insert reports the
// stable already-admin conflict.
func (r *Repository) AddAdmin(ctx context.Context, contestID, userID int64) error {
	_, err := r.pool.ExecContext(ctx,
		`INSERT INTO contest_admins (contest_id, user_id) VALUES (?, ?)`, contestID, userID)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return appErr.Conflict("Already admin")
		}
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	return nil
}

// RemoveAdmin removes a user from the roster.
func (r *Repository) RemoveAdmin(ctx context.Context, contestID, userID int64) error {
	res, err := r.pool.ExecContext(ctx,
		`DELETE FROM contest_admins WHERE contest_id = ? AND user_id = ?`, contestID, userID)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErr.NotFoundError("contest admin")
	}
	return nil
}

const participantColumns = "id, contest_id, user_id, nickname, `rank`, score, joined_at, left_at, " +
	"started_at, locked_at, violation_count, exam_status"

func scanParticipant(scanner interface{ Scan(...interface{}) error }) (*model.ContestParticipant, error) {
	var p model.ContestParticipant
	err := scanner.Scan(&p.ID, &p.ContestID, &p.UserID, &p.Nickname, &p.Rank, &p.Score,
		&p.JoinedAt, &p.LeftAt, &p.StartedAt, &p.LockedAt, &p.ViolationCount, &p.ExamStatus)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetParticipant returns the registration of (contest, user), or nil when
// the user never registered.
func (r *Repository) GetParticipant(ctx context.Context, contestID, userID int64) (*model.ContestParticipant, error) {
	row := r.pool.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM contest_participants WHERE contest_id = ? AND user_id = ?`,
		contestID, userID)
	p, err := scanParticipant(row)
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return p, nil
}

// CreateParticipant registers a user. (contest, user) is unique; a
// duplicate reports the stable already-registered conflict.
func (r *Repository) CreateParticipant(ctx context.Context, p *model.ContestParticipant) error {
	res, err := r.pool.ExecContext(ctx,
		`INSERT INTO contest_participants
			(contest_id, user_id, nickname, joined_at, violation_count, exam_status)
		VALUES (?, ?, ?, ?, 0, ?)`,
		p.ContestID, p.UserID, p.Nickname, p.JoinedAt, p.ExamStatus)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return appErr.Conflict("Already registered")
		}
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	return nil
}

// SetParticipantPresence toggles left_at for the enter/leave endpoints.
func (r *Repository) SetParticipantPresence(ctx context.Context, contestID, userID int64, leftAt *time.Time) error {
	res, err := r.pool.ExecContext(ctx,
		`UPDATE contest_participants SET left_at = ? WHERE contest_id = ? AND user_id = ?`,
		leftAt, contestID, userID)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErr.NotFoundError("participant")
	}
	return nil
}

// WithParticipantLock loads the participant row under SELECT ... FOR UPDATE,
// applies fn and persists the row fn returns. Returning (nil, nil) leaves
// the row untouched. Every exam transition and the auto-unlock read path go
// through this, which serializes them per participant.
func (r *Repository) WithParticipantLock(ctx context.Context, contestID, userID int64,
	fn func(p *model.ContestParticipant) (*model.ContestParticipant, error)) error {

	return db.WithTx(ctx, r.pool, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+participantColumns+` FROM contest_participants
			WHERE contest_id = ? AND user_id = ? FOR UPDATE`,
			contestID, userID)
		p, err := scanParticipant(row)
		if db.IsNoRows(err) {
			return appErr.New(appErr.CodeNotRegistered)
		}
		if err != nil {
			return appErr.Wrap(err, appErr.CodeDatabase)
		}

		updated, err := fn(p)
		if err != nil {
			return err
		}
		if updated == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE contest_participants
			SET started_at = ?, locked_at = ?, violation_count = ?, exam_status = ?
			WHERE id = ?`,
			updated.StartedAt, updated.LockedAt, updated.ViolationCount, updated.ExamStatus, updated.ID)
		if err != nil {
			return appErr.Wrap(err, appErr.CodeDatabase)
		}
		return nil
	})
}

// RecordExamEvent appends one violation event to the audit log.
func (r *Repository) RecordExamEvent(ctx context.Context, contestID, userID int64, event model.ViolationEvent, at time.Time) error {
	_, err := r.pool.ExecContext(ctx,
		`INSERT INTO exam_events (contest_id, user_id, event_type, created_at) VALUES (?, ?, ?, ?)`,
		contestID, userID, event, at)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	return nil
}

// ListParticipants returns every registration of a contest.
func (r *Repository) ListParticipants(ctx context.Context, contestID int64) ([]model.ContestParticipant, error) {
	rows, err := r.pool.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM contest_participants WHERE contest_id = ? ORDER BY id`,
		contestID)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()

	var participants []model.ContestParticipant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, appErr.Wrap(err, appErr.CodeDatabase)
		}
		participants = append(participants, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return participants, nil
}

// ListContestProblems returns the labeled problem set in order.
func (r *Repository) ListContestProblems(ctx context.Context, contestID int64) ([]model.ContestProblem, error) {
	rows, err := r.pool.QueryContext(ctx,
		`SELECT contest_id, problem_id, label, ordinal FROM contest_problems
		WHERE contest_id = ? ORDER BY ordinal`, contestID)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()

	var problems []model.ContestProblem
	for rows.Next() {
		var cp model.ContestProblem
		if err := rows.Scan(&cp.ContestID, &cp.ProblemID, &cp.Label, &cp.Ordinal); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeDatabase)
		}
		problems = append(problems, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return problems, nil
}

// ListVisible lists contests for the visible scope: public published
// contests for everyone, private published contests for authenticated
// viewers, and every contest for privileged viewers.
func (r *Repository) ListVisible(ctx context.Context, user *model.User) ([]model.Contest, error) {
	switch {
	case user != nil && user.IsPrivilegedRole():
		return r.listContests(ctx, `SELECT `+contestColumns+` FROM contests ORDER BY start_time DESC`)
	case user != nil:
		return r.listContests(ctx,
			`SELECT `+contestColumns+` FROM contests WHERE status = ? ORDER BY start_time DESC`,
			model.ContestPublished)
	default:
		return r.listContests(ctx,
			`SELECT `+contestColumns+` FROM contests WHERE status = ? AND visibility = ? ORDER BY start_time DESC`,
			model.ContestPublished, model.VisibilityPublic)
	}
}

// ListManaged lists contests for the manage scope: owned or administered,
// everything for staff.
func (r *Repository) ListManaged(ctx context.Context, user *model.User) ([]model.Contest, error) {
	if user == nil {
		return nil, nil
	}
	if user.IsStaff {
		return r.listContests(ctx, `SELECT `+contestColumns+` FROM contests ORDER BY start_time DESC`)
	}
	return r.listContests(ctx,
		`SELECT `+contestColumns+` FROM contests c
		WHERE c.owner_id = ?
			OR EXISTS (SELECT 1 FROM contest_admins a WHERE a.contest_id = c.id AND a.user_id = ?)
		ORDER BY c.start_time DESC`,
		user.ID, user.ID)
}

// ListParticipated lists contests the user registered for, excluding
// drafts for non-privileged viewers.
func (r *Repository) ListParticipated(ctx context.Context, user *model.User) ([]model.Contest, error) {
	if user == nil {
		return nil, nil
	}
	query := `SELECT ` + contestColumns + ` FROM contests c
		WHERE EXISTS (SELECT 1 FROM contest_participants p WHERE p.contest_id = c.id AND p.user_id = ?)`
	args := []interface{}{user.ID}
	if !user.IsPrivilegedRole() {
		query += ` AND c.status <> ?`
		args = append(args, model.ContestDraft)
	}
	query += ` ORDER BY c.start_time DESC`
	return r.listContests(ctx, query, args...)
}

func (r *Repository) listContests(ctx context.Context, query string, args ...interface{}) ([]model.Contest, error) {
	rows, err := r.pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()

	var contests []model.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, appErr.Wrap(err, appErr.CodeDatabase)
		}
		contests = append(contests, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return contests, nil
}

const clarificationColumns = `id, contest_id, author_id, problem_id, question, is_public,
	status, answer, answered_at, created_at`

func scanClarification(scanner interface{ Scan(...interface{}) error }) (*model.Clarification, error) {
	var cl model.Clarification
	err := scanner.Scan(&cl.ID, &cl.ContestID, &cl.AuthorID, &cl.ProblemID, &cl.Question,
		&cl.IsPublic, &cl.Status, &cl.Answer, &cl.AnsweredAt, &cl.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

// CreateClarification stores a new question.
func (r *Repository) CreateClarification(ctx context.Context, cl *model.Clarification) error {
	res, err := r.pool.ExecContext(ctx,
		`INSERT INTO clarifications (contest_id, author_id, problem_id, question, is_public, status, answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?)`,
		cl.ContestID, cl.AuthorID, cl.ProblemID, cl.Question, cl.IsPublic, model.ClarificationPending, cl.CreatedAt)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	cl.ID, err = res.LastInsertId()
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	cl.Status = model.ClarificationPending
	return nil
}

// GetClarification loads one clarification.
func (r *Repository) GetClarification(ctx context.Context, id int64) (*model.Clarification, error) {
	row := r.pool.QueryRowContext(ctx,
		`SELECT `+clarificationColumns+` FROM clarifications WHERE id = ?`, id)
	cl, err := scanClarification(row)
	if db.IsNoRows(err) {
		return nil, appErr.NotFoundError("clarification")
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return cl, nil
}

// ListClarifications returns a contest's clarifications, newest first. The
// service applies the visibility rule.
func (r *Repository) ListClarifications(ctx context.Context, contestID int64) ([]model.Clarification, error) {
	rows, err := r.pool.QueryContext(ctx,
		`SELECT `+clarificationColumns+` FROM clarifications WHERE contest_id = ? ORDER BY created_at DESC, id DESC`,
		contestID)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()

	var list []model.Clarification
	for rows.Next() {
		cl, err := scanClarification(rows)
		if err != nil {
			return nil, appErr.Wrap(err, appErr.CodeDatabase)
		}
		list = append(list, *cl)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return list, nil
}

// AnswerClarification stores the reply and marks it answered.
func (r *Repository) AnswerClarification(ctx context.Context, id int64, answer string, isPublic bool, answeredAt time.Time) error {
	res, err := r.pool.ExecContext(ctx,
		`UPDATE clarifications SET answer = ?, is_public = ?, status = ?, answered_at = ? WHERE id = ?`,
		answer, isPublic, model.ClarificationAnswered, answeredAt, id)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErr.NotFoundError("clarification")
	}
	return nil
}
