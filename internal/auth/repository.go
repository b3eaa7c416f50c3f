package auth

import (
	"context"
	"database/sql"
	"strings"

	"ojcore/internal/common/db"
	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

// UserRepository reads the user table maintained by the account service.
// The core never writes it.
type UserRepository struct {
	pool *sql.DB
}

// NewUserRepository creates the read-only user repository.
func NewUserRepository(pool *sql.DB) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID returns one user.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRowContext(ctx,
		`SELECT id, username, role, is_staff FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Role, &u.IsStaff)
	if db.IsNoRows(err) {
		return nil, appErr.NotFoundError("user")
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return &u, nil
}

// GetByUsername returns one user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRowContext(ctx,
		`SELECT id, username, role, is_staff FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.Role, &u.IsStaff)
	if db.IsNoRows(err) {
		return nil, appErr.NotFoundError("user")
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return &u, nil
}

// UsernamesByID resolves a batch of user ids. Unknown ids are omitted.
func (r *UserRepository) UsernamesByID(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.pool.QueryContext(ctx,
		`SELECT id, username FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeDatabase)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return names, nil
}
