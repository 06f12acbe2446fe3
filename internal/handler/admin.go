package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rafid/todohub/internal/apperror"
	"github.com/rafid/todohub/internal/gate"
	"github.com/rafid/todohub/internal/service"
)

// AdminHandler exposes the roster operations. The routes sit behind the
// gate's admin check AND the service re-verifies the caller on every call;
// neither layer trusts the other.
type AdminHandler struct {
	admins *service.AdminService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admins *service.AdminService) *AdminHandler {
	return &AdminHandler{admins: admins}
}

type setBlockedRequest struct {
	Blocked bool `json:"blocked"`
}

type setAdminRequest struct {
	Admin bool `json:"admin"`
}

type deleteUserRequest struct {
	UserID string `json:"userId"`
}

// actionResponse acknowledges a roster mutation.
type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleList returns the full roster for the admin page.
//
// HTTP: GET /api/admin/users
func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	callerID, ok := gate.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not signed in"))
		return
	}

	users, err := h.admins.ListUsers(r.Context(), callerID)
	if err != nil {
		writeError(w, err)
		return
	}

	res := make([]userResponse, 0, len(users))
	for i := range users {
		res = append(res, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSetBlocked blocks or unblocks the target account.
//
// HTTP: POST /api/admin/users/{id}/block
// BODY: {"blocked": true}
func (h *AdminHandler) HandleSetBlocked(w http.ResponseWriter, r *http.Request) {
	callerID, ok := gate.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not signed in"))
		return
	}

	targetID := r.PathValue("id")
	if targetID == "" {
		writeError(w, apperror.ValidationFailed("id", "user ID is required"))
		return
	}

	var req setBlockedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.admins.SetBlocked(r.Context(), callerID, targetID, req.Blocked); err != nil {
		writeError(w, err)
		return
	}

	msg := "User unblocked successfully"
	if req.Blocked {
		msg = "User blocked successfully"
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: msg})
}

// HandleSetAdmin grants or revokes the admin role.
//
// HTTP: POST /api/admin/users/{id}/admin
// BODY: {"admin": true}
func (h *AdminHandler) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	callerID, ok := gate.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not signed in"))
		return
	}

	targetID := r.PathValue("id")
	if targetID == "" {
		writeError(w, apperror.ValidationFailed("id", "user ID is required"))
		return
	}

	var req setAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.admins.SetAdmin(r.Context(), callerID, targetID, req.Admin); err != nil {
		writeError(w, err)
		return
	}

	msg := "Admin role revoked successfully"
	if req.Admin {
		msg = "Admin role granted successfully"
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: msg})
}

// HandleDelete permanently deletes the target account and, through the
// store's referential rules, everything it owns.
//
// HTTP: DELETE /api/admin/users
// BODY: {"userId": "..."}
//
// The target travels in the JSON body rather than the path. Statuses: 401
// unauthenticated, 403 forbidden, 400 bad input (missing or unknown
// userId), 500 failure.
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	callerID, ok := gate.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not signed in"))
		return
	}

	var req deleteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeError(w, apperror.ValidationFailed("userId", "userId is required"))
		return
	}

	if err := h.admins.DeleteUser(r.Context(), callerID, req.UserID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// An unknown target is bad input on this endpoint, not a 404.
			writeError(w, apperror.ValidationFailed("userId", "no user with that id"))
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: "User deleted successfully"})
}
