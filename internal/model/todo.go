package model

import "time"

// Todo represents a single task item owned by exactly one user.
//
// DueDate is a pointer because a todo may have no due date at all. When set,
// only the calendar day matters - time-of-day is not modeled. The repository
// stores it truncated to midnight UTC and the "today" projection compares
// calendar days in the viewer's location.
type Todo struct {
	ID          string     `json:"id"          db:"id"`
	UserID      string     `json:"userId"      db:"user_id"`
	Title       string     `json:"title"       db:"title"`
	Description string     `json:"description" db:"description"`
	DueDate     *time.Time `json:"dueDate,omitempty" db:"due_date"`
	Completed   bool       `json:"completed"   db:"completed"`
	CreatedAt   time.Time  `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt"   db:"updated_at"`
}

// TodoPatch is a partial update to a todo. Nil fields are left untouched,
// which is what makes concurrent edits from two tabs merge at the field
// level (last write observed wins, not strengthened).
type TodoPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
}
