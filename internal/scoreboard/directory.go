package scoreboard

import (
	"context"
	"database/sql"
	"strings"

	appErr "ojcore/pkg/errors"
)

// mysqlDirectory resolves display data straight from the users and
// problems tables.
type mysqlDirectory struct {
	pool *sql.DB
}

// NewDirectory creates the MySQL-backed directory.
func NewDirectory(pool *sql.DB) Directory {
	return &mysqlDirectory{pool: pool}
}

func (d *mysqlDirectory) lookup(ctx context.Context, query string, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := d.pool.QueryContext(ctx, strings.Replace(query, "(?)", "("+placeholders+")", 1), args...)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeDatabase)
		}
		out[id] = value
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeDatabase)
	}
	return out, nil
}

func (d *mysqlDirectory) UsernamesByID(ctx context.Context, ids []int64) (map[int64]string, error) {
	return d.lookup(ctx, `SELECT id, username FROM users WHERE id IN (?)`, ids)
}

func (d *mysqlDirectory) ProblemTitlesByID(ctx context.Context, ids []int64) (map[int64]string, error) {
	return d.lookup(ctx, `SELECT id, title FROM problems WHERE id IN (?)`, ids)
}
