// Package repository declares the storage interfaces the service layer
// programs against. The concrete implementation lives in repository/sqlite;
// tests substitute in-memory fakes.
//
// All three interfaces are implemented by the same *sqlite.DB, so method
// names carry the entity (CreateUser, CreateTodo, ...) to keep them disjoint
// on one receiver.
package repository

import (
	"context"

	"github.com/rafid/todohub/internal/model"
)

// UserRepository stores account profiles, including credentials and the two
// authorization flags the access gate reads.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// ListUsers returns every profile, newest first. Used by the admin roster.
	ListUsers(ctx context.Context) ([]model.User, error)
	SetUserBlocked(ctx context.Context, id string, blocked bool) error
	SetUserAdmin(ctx context.Context, id string, admin bool) error
	// DeleteUser removes the profile. Owned todos and sessions go with it via
	// the store's foreign-key cascade; callers do not delete them separately.
	DeleteUser(ctx context.Context, id string) error
}

// TodoRepository stores todo items. Every read and write is scoped by the
// owner's user ID - there is no cross-user access path at this layer.
type TodoRepository interface {
	CreateTodo(ctx context.Context, todo *model.Todo) error
	GetTodoByID(ctx context.Context, userID, id string) (*model.Todo, error)
	// ListTodosByUser returns the owner's todos, most recently created first.
	ListTodosByUser(ctx context.Context, userID string) ([]model.Todo, error)
	UpdateTodo(ctx context.Context, todo *model.Todo) error
	DeleteTodo(ctx context.Context, userID, id string) error
}

// SessionRepository stores the server-side half of each session token.
// Deleting rows is how sign-out and forced sign-out become observable.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	// DeleteAllSessionsForUser revokes every live session of one user in a
	// single call. Blocking a user goes through here.
	DeleteAllSessionsForUser(ctx context.Context, userID string) error
}
