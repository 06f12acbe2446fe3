package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/rafid/todohub/internal/apperror"
	"github.com/rafid/todohub/internal/model"
	"github.com/rafid/todohub/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new user profile. The repository assigns the ID and
// timestamps. A UNIQUE violation on email is translated to
// apperror.ErrConflict so the signup handler can report "already
// registered" distinctly.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, password_hash, is_admin, is_blocked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.IsAdmin,
		user.IsBlocked,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// modernc.org/sqlite reports constraint failures in the error text;
		// there is no exported error type to match on.
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return apperror.Conflict("an account with this email already exists")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetUserByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no such user exists.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email. Used by sign-in.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, email)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, full_name, password_hash, is_admin, is_blocked, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.IsBlocked,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user %v: %w", arg, err)
	}

	return &u, nil
}

// ListUsers returns all user profiles, newest first.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, email, full_name, password_hash, is_admin, is_blocked, created_at, updated_at
		 FROM users ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID,
			&u.Email,
			&u.FullName,
			&u.PasswordHash,
			&u.IsAdmin,
			&u.IsBlocked,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}

	return users, nil
}

// SetUserBlocked flips the is_blocked flag.
func (db *DB) SetUserBlocked(ctx context.Context, id string, blocked bool) error {
	return db.setFlag(ctx, id, "is_blocked", blocked)
}

// SetUserAdmin flips the is_admin flag.
func (db *DB) SetUserAdmin(ctx context.Context, id string, admin bool) error {
	return db.setFlag(ctx, id, "is_admin", admin)
}

func (db *DB) setFlag(ctx context.Context, id, column string, value bool) error {
	// column is one of two package-internal constants, never caller input.
	res, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET %s = ?, updated_at = ? WHERE id = ?`, column),
		value, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating %s for user %s: %w", column, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking %s update for user %s: %w", column, id, err)
	}
	if affected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// DeleteUser removes a user. Foreign keys cascade the deletion to the user's
// todos and sessions (see migrate in sqlite.go).
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking user delete %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
