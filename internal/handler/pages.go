package handler

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageNames lists the page templates, each paired with base.html at parse
// time. Parsing happens once at startup; a broken template fails the boot
// instead of the first request.
var pageNames = []string{"index", "login", "signup", "dashboard", "admin"}

// PageHandler serves the server-rendered page shells. The shells carry the
// markup and a small amount of script; all data flows through the JSON API
// afterwards.
type PageHandler struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// pageData is what every page template sees.
type pageData struct {
	Title string
	// Blocked renders the one-time "you were blocked" notice on the login
	// page. It comes from the ?blocked=true marker the forced sign-out
	// redirect carries.
	Blocked bool
}

// NewPageHandler parses the embedded templates.
func NewPageHandler(logger *slog.Logger) (*PageHandler, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &PageHandler{pages: pages, logger: logger}, nil
}

func (h *PageHandler) render(w http.ResponseWriter, page string, data pageData) {
	tmpl, ok := h.pages[page]
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// HandleIndex serves the landing page. The gate redirects signed-in users
// to the dashboard before this runs.
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, "index", pageData{Title: "TodoHub"})
}

// HandleLogin serves the login page, with the block notice when the
// redirect marker is present.
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login", pageData{
		Title:   "Sign in",
		Blocked: r.URL.Query().Get("blocked") == "true",
	})
}

// HandleSignup serves the registration page.
func (h *PageHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	h.render(w, "signup", pageData{Title: "Create account"})
}

// HandleDashboard serves the members area shell.
func (h *PageHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, "dashboard", pageData{Title: "Dashboard"})
}

// HandleAdmin serves the admin area shell.
func (h *PageHandler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	h.render(w, "admin", pageData{Title: "User management"})
}
