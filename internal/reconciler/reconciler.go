// Package reconciler maintains one signed-in session's in-memory view of
// its todo list. Local mutations go through the store first and patch the
// view only on success; external mutations arrive as change events from the
// feed and are merged by a pure transition function. Two sessions of the
// same user converge through the feed alone, without reloading.
package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rafid/todohub/internal/model"
)

// Store is the slice of todo operations the reconciler mutates through.
// Satisfied by *service.TodoService.
type Store interface {
	Create(ctx context.Context, userID, title, description string, dueDate *time.Time) (*model.Todo, error)
	List(ctx context.Context, userID string) ([]model.Todo, error)
	Update(ctx context.Context, userID, id string, patch model.TodoPatch) (*model.Todo, error)
	Delete(ctx context.Context, userID, id string) error
}

// Feed is the subscribable change feed. Satisfied by *feed.Broker.
type Feed interface {
	Subscribe(userID string) (<-chan model.ChangeEvent, func())
}

// Reduce is the pure transition function: it returns the list that results
// from merging one change event into the current list. The input slice is
// never mutated.
//
// Merge rules, per event kind:
//   - created: prepend if no record with that ID exists; replace in place
//     if one does. Duplicate delivery therefore never produces a duplicate
//     entry.
//   - updated: replace the matching record wholesale; no-op when absent,
//     the record may have been removed in a race.
//   - removed: delete the matching record; no-op when absent. Applying the
//     same removal twice is safe.
//
// For an updated/removed pair over the same ID the final state is the same
// in either arrival order: the item is absent.
func Reduce(list []model.Todo, ev model.ChangeEvent) []model.Todo {
	switch ev.Kind {
	case model.EventCreated:
		for i := range list {
			if list[i].ID == ev.Todo.ID {
				out := append([]model.Todo(nil), list...)
				out[i] = ev.Todo
				return out
			}
		}
		out := make([]model.Todo, 0, len(list)+1)
		out = append(out, ev.Todo)
		return append(out, list...)

	case model.EventUpdated:
		for i := range list {
			if list[i].ID == ev.Todo.ID {
				out := append([]model.Todo(nil), list...)
				out[i] = ev.Todo
				return out
			}
		}
		return list

	case model.EventRemoved:
		for i := range list {
			if list[i].ID == ev.Todo.ID {
				out := make([]model.Todo, 0, len(list)-1)
				out = append(out, list[:i]...)
				return append(out, list[i+1:]...)
			}
		}
		return list
	}

	// Unknown kinds are ignored rather than corrupting the view.
	return list
}

// Reconciler owns the in-memory list for one user session. All methods are
// safe for concurrent use; the mutex serializes local mutations against the
// feed loop.
type Reconciler struct {
	store  Store
	feed   Feed
	userID string
	logger *slog.Logger

	mu   sync.Mutex
	list []model.Todo
}

// New creates a Reconciler for the given user. Call Load to seed the view
// and Run to start merging feed events.
func New(store Store, feed Feed, userID string, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		feed:   feed,
		userID: userID,
		logger: logger,
	}
}

// Load seeds the in-memory list from the store, newest first. On error the
// current view is left untouched.
func (r *Reconciler) Load(ctx context.Context) error {
	todos, err := r.store.List(ctx, r.userID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.list = todos
	r.mu.Unlock()
	return nil
}

// Run subscribes to the user's change feed and merges events in arrival
// order until ctx is cancelled or the feed closes the channel. The
// subscription is torn down on every exit path; a feed handle must not
// outlive its owning session.
func (r *Reconciler) Run(ctx context.Context) {
	events, cancel := r.feed.Subscribe(r.userID)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.mu.Lock()
			r.list = Reduce(r.list, ev)
			r.mu.Unlock()
		}
	}
}

// ApplyLocalCreate validates and submits a new todo, then inserts the
// canonical stored record at the front of the view. An empty trimmed title
// is rejected by the store layer before any write; on any error the view is
// untouched.
func (r *Reconciler) ApplyLocalCreate(ctx context.Context, title, description string, dueDate *time.Time) (*model.Todo, error) {
	todo, err := r.store.Create(ctx, r.userID, title, description, dueDate)
	if err != nil {
		return nil, err
	}

	// The feed will echo this creation back; Reduce's in-place replace
	// keeps the echo from duplicating the entry.
	r.mu.Lock()
	r.list = Reduce(r.list, model.ChangeEvent{Kind: model.EventCreated, Todo: *todo})
	r.mu.Unlock()

	return todo, nil
}

// ApplyLocalUpdate submits a partial update and merges the stored result
// into the view. If the record is no longer present locally the merge is a
// no-op, not an error: it may have been removed concurrently.
func (r *Reconciler) ApplyLocalUpdate(ctx context.Context, id string, patch model.TodoPatch) (*model.Todo, error) {
	todo, err := r.store.Update(ctx, r.userID, id, patch)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.list = Reduce(r.list, model.ChangeEvent{Kind: model.EventUpdated, Todo: *todo})
	r.mu.Unlock()

	return todo, nil
}

// ApplyLocalDelete submits the deletion and removes the record from the
// view. Removing an ID that is already gone locally is a no-op.
func (r *Reconciler) ApplyLocalDelete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.userID, id); err != nil {
		return err
	}

	r.mu.Lock()
	r.list = Reduce(r.list, model.ChangeEvent{Kind: model.EventRemoved, Todo: model.Todo{ID: id}})
	r.mu.Unlock()

	return nil
}

// ApplyLocalToggle flips the completed flag. Sugar for ApplyLocalUpdate.
func (r *Reconciler) ApplyLocalToggle(ctx context.Context, id string, currentCompleted bool) (*model.Todo, error) {
	completed := !currentCompleted
	return r.ApplyLocalUpdate(ctx, id, model.TodoPatch{Completed: &completed})
}

// List returns a copy of the current view, most recently created first.
func (r *Reconciler) List() []model.Todo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Todo(nil), r.list...)
}

// Today returns the items due on the calendar day containing now, in now's
// location. Completion does not matter: a finished item due today is still
// a today item.
func (r *Reconciler) Today(now time.Time) []model.Todo {
	day := truncateToDay(now)
	return r.filter(func(t model.Todo) bool {
		return t.DueDate != nil && truncateToDay(t.DueDate.In(now.Location())).Equal(day)
	})
}

// Completed returns the finished items.
func (r *Reconciler) Completed() []model.Todo {
	return r.filter(func(t model.Todo) bool { return t.Completed })
}

// Pending returns the unfinished items.
func (r *Reconciler) Pending() []model.Todo {
	return r.filter(func(t model.Todo) bool { return !t.Completed })
}

// filter is a recomputed-on-read projection over the view. The projections
// are never mutated separately from the list, so they cannot drift from it.
func (r *Reconciler) filter(keep func(model.Todo) bool) []model.Todo {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Todo
	for _, t := range r.list {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
