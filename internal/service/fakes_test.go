package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rafid/todohub/internal/apperror"
	"github.com/rafid/todohub/internal/auth"
	"github.com/rafid/todohub/internal/model"
)

// fakeStore is an in-memory implementation of all three repository
// interfaces, mirroring how the real sqlite.DB implements them on one
// receiver. Hand-written fake rather than a mock framework: what it does is
// visible in this file.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	todos    map[string]*model.Todo
	sessions map[string]*model.Session
	nextID   int

	// onGetUserByEmail runs after a successful email lookup. Tests use it
	// to mutate state between the credential check and the block re-check.
	onGetUserByEmail func()

	createTodoCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*model.User),
		todos:    make(map[string]*model.Todo),
		sessions: make(map[string]*model.Session),
	}
}

// id must be called with f.mu held.
func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%03d", prefix, f.nextID)
}

// --- UserRepository ---

func (f *fakeStore) CreateUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("an account with this email already exists")
		}
	}
	user.ID = f.id("user")
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	clone := *u
	return &clone, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	var found *model.User
	for _, u := range f.users {
		if u.Email == email {
			clone := *u
			found = &clone
			break
		}
	}
	f.mu.Unlock()
	if found == nil {
		return nil, apperror.NotFound("user", email)
	}
	if f.onGetUserByEmail != nil {
		f.onGetUserByEmail()
	}
	return found, nil
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []model.User
	for _, u := range f.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (f *fakeStore) SetUserBlocked(ctx context.Context, id string, blocked bool) error {
	return f.setUserFlag(id, func(u *model.User) { u.IsBlocked = blocked })
}

func (f *fakeStore) SetUserAdmin(ctx context.Context, id string, admin bool) error {
	return f.setUserFlag(id, func(u *model.User) { u.IsAdmin = admin })
}

func (f *fakeStore) setUserFlag(id string, apply func(*model.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	apply(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	// Foreign-key cascade.
	for tid, t := range f.todos {
		if t.UserID == id {
			delete(f.todos, tid)
		}
	}
	for sid, s := range f.sessions {
		if s.UserID == id {
			delete(f.sessions, sid)
		}
	}
	return nil
}

// --- TodoRepository ---

func (f *fakeStore) CreateTodo(ctx context.Context, todo *model.Todo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createTodoCalls++
	todo.ID = f.id("todo")
	todo.CreatedAt = time.Now()
	todo.UpdatedAt = todo.CreatedAt
	clone := *todo
	f.todos[todo.ID] = &clone
	return nil
}

func (f *fakeStore) GetTodoByID(ctx context.Context, userID, id string) (*model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.todos[id]
	if !ok || t.UserID != userID {
		return nil, apperror.NotFound("todo", id)
	}
	clone := *t
	return &clone, nil
}

func (f *fakeStore) ListTodosByUser(ctx context.Context, userID string) ([]model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var todos []model.Todo
	for _, t := range f.todos {
		if t.UserID == userID {
			todos = append(todos, *t)
		}
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].ID > todos[j].ID })
	return todos, nil
}

func (f *fakeStore) UpdateTodo(ctx context.Context, todo *model.Todo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.todos[todo.ID]
	if !ok || existing.UserID != todo.UserID {
		return apperror.NotFound("todo", todo.ID)
	}
	todo.UpdatedAt = time.Now()
	clone := *todo
	f.todos[todo.ID] = &clone
	return nil
}

func (f *fakeStore) DeleteTodo(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.todos[id]
	if !ok || t.UserID != userID {
		return apperror.NotFound("todo", id)
	}
	delete(f.todos, id)
	return nil
}

// --- SessionRepository ---

func (f *fakeStore) CreateSession(ctx context.Context, session *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *session
	f.sessions[session.ID] = &clone
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	clone := *s
	return &clone, nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) DeleteAllSessionsForUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeStore) sessionCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (f *fakePublisher) Publish(userID string, ev model.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakePublisher) all() []model.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ChangeEvent(nil), f.events...)
}

// --- shared wiring ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAuthService(t *testing.T, store *fakeStore) *AuthService {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
	return NewAuthService(store, store, tokens, passwords, testLogger())
}

// seedUser creates a user directly in the fake, bypassing SignUp, with a
// known password of "password123".
func seedUser(t *testing.T, store *fakeStore, email string, admin, blocked bool) *model.User {
	t.Helper()
	hash, err := auth.NewPasswordServiceForTest(bcrypt.MinCost).Hash("password123")
	if err != nil {
		t.Fatalf("hashing seed password: %v", err)
	}
	u := &model.User{Email: email, PasswordHash: hash, IsAdmin: admin, IsBlocked: blocked}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seeding user %s: %v", email, err)
	}
	// CreateUser stores a clone; fetch the live pointer so tests can mutate
	// flags in place.
	store.users[u.ID].IsAdmin = admin
	store.users[u.ID].IsBlocked = blocked
	return u
}
