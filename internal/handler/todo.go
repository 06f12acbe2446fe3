package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rafid/todohub/internal/apperror"
	"github.com/rafid/todohub/internal/gate"
	"github.com/rafid/todohub/internal/model"
	"github.com/rafid/todohub/internal/service"
)

// dueDateLayout is the date-only wire format for due dates. Time of day is
// meaningless for a due date and never round-trips.
const dueDateLayout = "2006-01-02"

// TodoHandler manages the owner-scoped todo CRUD endpoints. Every route is
// behind RequireSession; the owner is always the caller from the context,
// never from the request body.
type TodoHandler struct {
	todos *service.TodoService
}

// NewTodoHandler creates a TodoHandler.
func NewTodoHandler(todos *service.TodoService) *TodoHandler {
	return &TodoHandler{todos: todos}
}

type createTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"` // "2006-01-02" or empty
}

type updateTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"` // "2006-01-02"; nil leaves it untouched
	Completed   *bool   `json:"completed"`
}

type todoResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     *string   `json:"dueDate"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toTodoResponse(t *model.Todo) todoResponse {
	res := todoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.DueDate != nil {
		s := t.DueDate.Format(dueDateLayout)
		res.DueDate = &s
	}
	return res
}

func parseDueDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dueDateLayout, s)
	if err != nil {
		return nil, apperror.ValidationFailed("dueDate", "due date must be in YYYY-MM-DD format")
	}
	return &t, nil
}

// HandleList returns the caller's todos, newest first.
//
// HTTP: GET /api/todos
func (h *TodoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := gate.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not signed in"))
		return
	}

	todos, err := h.todos.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	res := make([]todoResponse, 0, len(todos))
	for i := range todos {
		res = append(res, toTodoResponse(&todos[i]))
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCreate adds a todo for the caller.
//
// HTTP: POST /api/todos
// BODY: {"title": "...", "description": "...", "dueDate": "2026-08-31"}
func (h *TodoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := gate.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not signed in"))
		return
	}

	var req createTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	due, err := parseDueDate(req.DueDate)
	if err != nil {
		writeError(w, err)
		return
	}

	todo, err := h.todos.Create(r.Context(), userID, req.Title, req.Description, due)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTodoResponse(todo))
}

// HandleUpdate applies a partial update to the caller's todo. Absent body
// fields are left untouched.
//
// HTTP: PATCH /api/todos/{id}
func (h *TodoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := gate.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not signed in"))
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperror.ValidationFailed("id", "todo ID is required"))
		return
	}

	var req updateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	patch := model.TodoPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			writeError(w, err)
			return
		}
		patch.DueDate = due
	}

	todo, err := h.todos.Update(r.Context(), userID, id, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTodoResponse(todo))
}

// HandleDelete removes the caller's todo.
//
// HTTP: DELETE /api/todos/{id}
func (h *TodoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := gate.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not signed in"))
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperror.ValidationFailed("id", "todo ID is required"))
		return
	}

	if err := h.todos.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
