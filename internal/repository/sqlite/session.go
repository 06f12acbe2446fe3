package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rafid/todohub/internal/apperror"
	"github.com/rafid/todohub/internal/model"
	"github.com/rafid/todohub/internal/repository"
)

// compile-time check that *DB implements repository.SessionRepository
var _ repository.SessionRepository = (*DB)(nil)

// CreateSession inserts a session row. The ID (the token's jti) is generated by
// the auth package, not here.
func (db *DB) CreateSession(ctx context.Context, session *model.Session) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting session for user %s: %w", session.UserID, err)
	}
	return nil
}

// GetSession retrieves a session row by ID. ErrNotFound means the session was
// revoked (or never existed) - the token presenting this jti is dead.
func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session %s: %w", id, err)
	}

	return &s, nil
}

// DeleteSession removes one session row. Deleting an already-absent session is not
// an error - sign-out is idempotent.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session %s: %w", id, err)
	}
	return nil
}

// DeleteAllSessionsForUser revokes every session of one user. This is the
// forced sign-out path: after it runs, every outstanding token for the user
// fails session resolution on its next request.
func (db *DB) DeleteAllSessionsForUser(ctx context.Context, userID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: deleting sessions for user %s: %w", userID, err)
	}
	return nil
}
