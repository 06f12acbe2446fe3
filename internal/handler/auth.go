// Package handler contains the HTTP request handlers. Handlers parse the
// request, call into the service layer, and write the response; they hold
// no business logic of their own.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rafid/todohub/internal/apperror"
	"github.com/rafid/todohub/internal/gate"
	"github.com/rafid/todohub/internal/metrics"
	"github.com/rafid/todohub/internal/model"
	"github.com/rafid/todohub/internal/service"
)

// AuthHandler manages sign-up, login, logout, and the current-user lookup.
type AuthHandler struct {
	auth    *service.AuthService
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth *service.AuthService, collector *metrics.Collector, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, metrics: collector, logger: logger}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the serialized profile. The password hash never appears
// here; model.User excludes it from JSON as well, this type just pins the
// wire shape independently of the storage struct.
type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	IsAdmin   bool   `json:"isAdmin"`
	IsBlocked bool   `json:"isBlocked"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		IsAdmin:   u.IsAdmin,
		IsBlocked: u.IsBlocked,
	}
}

// HandleSignup registers a new account.
//
// HTTP: POST /api/signup
// BODY: {"email": "...", "password": "...", "fullName": "..."}
//
// A duplicate email comes back as 409 so the page can say "already
// registered" instead of a generic failure.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleLogin checks credentials and opens the session.
//
// HTTP: POST /api/login
// BODY: {"email": "...", "password": "..."}
//
// On success the session token goes into an HttpOnly cookie; the body
// carries the profile. A blocked account gets 403 with the blocked flag,
// and no cookie: the login-time re-check already destroyed its session.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	res, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrBlocked):
			h.metrics.RecordLogin("blocked")
		case errors.Is(err, apperror.ErrUnauthorized):
			h.metrics.RecordLogin("invalid_credentials")
		default:
			h.metrics.RecordLogin("error")
		}
		writeError(w, err)
		return
	}
	h.metrics.RecordLogin("success")

	http.SetCookie(w, &http.Cookie{
		Name:     gate.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(res.TTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, toUserResponse(res.User))
}

// HandleLogout destroys the session and clears the cookie.
//
// HTTP: POST /api/logout
//
// Always succeeds: logging out without a live session is not an error.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := gate.TokenFromRequest(r); token != "" {
		if err := h.auth.SignOut(r.Context(), token); err != nil {
			h.logger.Error("sign-out failed", slog.String("error", err.Error()))
			writeError(w, err)
			return
		}
	}

	gate.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the signed-in user's profile.
//
// HTTP: GET /api/me (behind RequireSession)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := gate.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not signed in"))
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
