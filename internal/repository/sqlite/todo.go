package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/rafid/todohub/internal/apperror"
	"github.com/rafid/todohub/internal/model"
	"github.com/rafid/todohub/internal/repository"
)

// compile-time check that *DB implements repository.TodoRepository
var _ repository.TodoRepository = (*DB)(nil)

// CreateTodo inserts a new todo. ID and timestamps are assigned here; the due
// date, if present, is truncated to midnight UTC since only the calendar day
// is modeled.
func (db *DB) CreateTodo(ctx context.Context, todo *model.Todo) error {
	now := time.Now()
	todo.ID = xid.New().String()
	todo.CreatedAt = now
	todo.UpdatedAt = now
	if todo.DueDate != nil {
		d := truncateToDay(*todo.DueDate)
		todo.DueDate = &d
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO todos (id, user_id, title, description, due_date, completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		todo.ID,
		todo.UserID,
		todo.Title,
		todo.Description,
		todo.DueDate,
		todo.Completed,
		todo.CreatedAt,
		todo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting todo for user %s: %w", todo.UserID, err)
	}

	return nil
}

// GetTodoByID retrieves one todo, scoped to its owner. A todo belonging to a
// different user is indistinguishable from a missing one - both are
// ErrNotFound, so the API leaks no existence information across tenants.
func (db *DB) GetTodoByID(ctx context.Context, userID, id string) (*model.Todo, error) {
	var t model.Todo
	var due sql.NullTime

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, title, description, due_date, completed, created_at, updated_at
		 FROM todos WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&due,
		&t.Completed,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("todo", id)
		}
		return nil, fmt.Errorf("sqlite: getting todo %s: %w", id, err)
	}
	if due.Valid {
		t.DueDate = &due.Time
	}

	return &t, nil
}

// ListTodosByUser returns the owner's todos, most recently created first. This is
// the canonical order the reconciler maintains in memory.
func (db *DB) ListTodosByUser(ctx context.Context, userID string) ([]model.Todo, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, title, description, due_date, completed, created_at, updated_at
		 FROM todos WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing todos for user %s: %w", userID, err)
	}
	defer rows.Close()

	var todos []model.Todo
	for rows.Next() {
		var t model.Todo
		var due sql.NullTime
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Title,
			&t.Description,
			&due,
			&t.Completed,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning todo row: %w", err)
		}
		if due.Valid {
			t.DueDate = &due.Time
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating todo rows: %w", err)
	}

	return todos, nil
}

// UpdateTodo writes all mutable fields of the todo. The WHERE clause carries the
// owner, so a forged ID from another tenant updates zero rows and surfaces
// as ErrNotFound.
func (db *DB) UpdateTodo(ctx context.Context, todo *model.Todo) error {
	todo.UpdatedAt = time.Now()
	if todo.DueDate != nil {
		d := truncateToDay(*todo.DueDate)
		todo.DueDate = &d
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE todos SET title = ?, description = ?, due_date = ?, completed = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		todo.Title,
		todo.Description,
		todo.DueDate,
		todo.Completed,
		todo.UpdatedAt,
		todo.ID,
		todo.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating todo %s: %w", todo.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking todo update %s: %w", todo.ID, err)
	}
	if affected == 0 {
		return apperror.NotFound("todo", todo.ID)
	}
	return nil
}

// DeleteTodo removes a todo, scoped to its owner.
func (db *DB) DeleteTodo(ctx context.Context, userID, id string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM todos WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting todo %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking todo delete %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("todo", id)
	}
	return nil
}

// truncateToDay drops the time-of-day component. Due dates have calendar-day
// precision only.
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
