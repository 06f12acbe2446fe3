package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPageHandler(t *testing.T) *PageHandler {
	t.Helper()
	h, err := NewPageHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return h
}

func renderPage(t *testing.T, serve http.HandlerFunc, path string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	serve(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	return rec.Body.String()
}

func TestPages_AllRender(t *testing.T) {
	h := newTestPageHandler(t)

	pages := map[string]http.HandlerFunc{
		"/":          h.HandleIndex,
		"/login":     h.HandleLogin,
		"/signup":    h.HandleSignup,
		"/dashboard": h.HandleDashboard,
		"/admin":     h.HandleAdmin,
	}
	for path, serve := range pages {
		body := renderPage(t, serve, path)
		assert.Contains(t, body, "</html>", path)
	}
}

func TestLoginPage_BlockNotice(t *testing.T) {
	h := newTestPageHandler(t)

	plain := renderPage(t, h.HandleLogin, "/login")
	assert.NotContains(t, plain, `class="notice"`)

	marked := renderPage(t, h.HandleLogin, "/login?blocked=true")
	assert.Contains(t, marked, `class="notice"`)
	assert.Contains(t, marked, "blocked")
}

func TestAdminPage_RosterCellsNeverParseUserInput(t *testing.T) {
	h := newTestPageHandler(t)
	body := renderPage(t, h.HandleAdmin, "/admin")

	// Email and full name are arbitrary signup input rendered into the
	// roster table. They must be assigned through textContent so a name
	// like "<img onerror=...>" stays inert text in the admin's browser.
	assert.Contains(t, body, "cell.textContent = text")
	assert.NotContains(t, body, "tr.innerHTML")
}

func TestDashboardPage_TodayIsLocalAndEditExposed(t *testing.T) {
	h := newTestPageHandler(t)
	body := renderPage(t, h.HandleDashboard, "/dashboard")

	// "Due today" compares against the viewer's local calendar day, not
	// the UTC one.
	assert.Contains(t, body, "function localDay()")
	assert.NotContains(t, body, "toISOString().slice(0, 10)")

	// Title, description, and due date are editable in place.
	assert.Contains(t, body, "function editTodo(")
	assert.Contains(t, body, "'PATCH'")
}
