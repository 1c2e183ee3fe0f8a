package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/broken-weave/internal/apperror"
	"github.com/sakif/broken-weave/internal/model"
	"github.com/sakif/broken-weave/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new account row. Duplicates that race past the
// service's existence pre-check surface as conflicts via the UNIQUE
// constraints on username and email.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now()

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, is_admin, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.IsAdmin,
		user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return conflictOr(err, "username or email already exists", "postgres: creating user")
	}

	return nil
}

// GetUserByUsername returns apperror.ErrNotFound if no user exists with
// that username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, is_admin, created_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", username, err)
	}

	return &u, nil
}

// UserExists reports whether a row already holds the username OR email.
func (db *DB) UserExists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: checking user existence: %w", err)
	}
	return exists, nil
}
