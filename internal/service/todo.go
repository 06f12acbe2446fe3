package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rafid/todohub/internal/apperror"
	"github.com/rafid/todohub/internal/model"
	"github.com/rafid/todohub/internal/repository"
)

// Validation limits for todo fields.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// EventPublisher delivers change events to the owner's live sessions.
// Satisfied by *feed.Broker.
type EventPublisher interface {
	Publish(userID string, ev model.ChangeEvent)
}

// TodoService handles todo business logic: validation, owner scoping, and
// publishing a change event after every successful mutation. The events are
// what keeps every other live session of the same user converging without a
// reload.
type TodoService struct {
	repo   repository.TodoRepository
	events EventPublisher
	logger *slog.Logger
}

// NewTodoService creates a TodoService.
func NewTodoService(repo repository.TodoRepository, events EventPublisher, logger *slog.Logger) *TodoService {
	return &TodoService{
		repo:   repo,
		events: events,
		logger: logger,
	}
}

// Create validates and saves a new todo for userID.
//
// The title must be non-empty after trimming; an empty title is rejected
// here, before any store call, so a failed validation has zero side
// effects. On success the canonical record (with ID and timestamps) is
// returned and a created event goes out.
func (s *TodoService) Create(ctx context.Context, userID, title, description string, dueDate *time.Time) (*model.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if len(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	todo := &model.Todo{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(description),
		DueDate:     dueDate,
	}
	if err := s.repo.CreateTodo(ctx, todo); err != nil {
		return nil, fmt.Errorf("service/todo: creating todo: %w", err)
	}

	s.logger.Info("todo created",
		slog.String("id", todo.ID),
		slog.String("userID", userID),
	)
	s.events.Publish(userID, model.ChangeEvent{Kind: model.EventCreated, Todo: *todo})

	return todo, nil
}

// List returns the user's todos, most recently created first. This order
// seeds the reconciler's in-memory list.
func (s *TodoService) List(ctx context.Context, userID string) ([]model.Todo, error) {
	todos, err := s.repo.ListTodosByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/todo: listing todos for %s: %w", userID, err)
	}
	return todos, nil
}

// Update applies a partial update to the user's todo. Nil patch fields are
// left untouched; the full updated record is returned and broadcast.
func (s *TodoService) Update(ctx context.Context, userID, id string, patch model.TodoPatch) (*model.Todo, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "todo ID is required")
	}

	// Fetch-then-update: owner scoping comes from the fetch, and the
	// canonical merged record is what gets written and broadcast.
	todo, err := s.repo.GetTodoByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("title", "title is required")
		}
		if len(title) > MaxTitleLength {
			return nil, apperror.ValidationFailed("title",
				fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
		}
		todo.Title = title
	}
	if patch.Description != nil {
		if len(*patch.Description) > MaxDescriptionLength {
			return nil, apperror.ValidationFailed("description",
				fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
		}
		todo.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.DueDate != nil {
		todo.DueDate = patch.DueDate
	}
	if patch.Completed != nil {
		todo.Completed = *patch.Completed
	}

	if err := s.repo.UpdateTodo(ctx, todo); err != nil {
		return nil, fmt.Errorf("service/todo: updating todo %s: %w", id, err)
	}

	s.logger.Info("todo updated", slog.String("id", id), slog.String("userID", userID))
	s.events.Publish(userID, model.ChangeEvent{Kind: model.EventUpdated, Todo: *todo})

	return todo, nil
}

// Toggle flips the completed flag. Sugar over Update.
func (s *TodoService) Toggle(ctx context.Context, userID, id string, currentCompleted bool) (*model.Todo, error) {
	completed := !currentCompleted
	return s.Update(ctx, userID, id, model.TodoPatch{Completed: &completed})
}

// Delete removes the user's todo and broadcasts the removal. The removed
// event carries only the ID - subscribers must not rely on other fields.
func (s *TodoService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "todo ID is required")
	}

	if err := s.repo.DeleteTodo(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info("todo deleted", slog.String("id", id), slog.String("userID", userID))
	s.events.Publish(userID, model.ChangeEvent{Kind: model.EventRemoved, Todo: model.Todo{ID: id}})

	return nil
}
