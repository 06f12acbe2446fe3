package gate

import (
	"context"
	"net/http"
)

// SessionCookie is the name of the HttpOnly cookie carrying the session
// token. HttpOnly keeps it out of reach of page scripts.
const SessionCookie = "session"

// contextKey is an unexported type for context keys in this package, so no
// other package can read or shadow the values we store.
type contextKey string

const userIDKey contextKey = "userID"

// UserIDFromContext retrieves the authenticated user's ID placed in the
// request context by RequireSession. Returns ("", false) for anonymous
// requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// TokenFromRequest extracts the raw session token from the request cookie.
// Returns "" when the cookie is absent.
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ClearSessionCookie tells the browser to delete the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware is the HTTP adapter around Decide for page navigation. It runs
// on every page route, reads the session cookie, and turns the disposition
// into the corresponding redirect or pass-through.
//
// Gate outcomes are navigational - a rejected request gets a redirect, never
// an error page. API routes use RequireSession instead, which speaks JSON
// status codes.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)

		switch g.Decide(r.Context(), r.URL.Path, token) {
		case RedirectLogin:
			http.Redirect(w, r, PathLogin, http.StatusSeeOther)
		case RedirectDashboard:
			http.Redirect(w, r, PathDashboard, http.StatusSeeOther)
		case SignOutRedirect:
			// Decide already revoked the sessions; clearing the cookie and
			// carrying the blocked marker is the adapter's half of the job.
			ClearSessionCookie(w)
			http.Redirect(w, r, PathLogin+"?blocked=true", http.StatusSeeOther)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// RequireSession protects API routes. It resolves the session token and
// stores the user ID in the request context; anonymous or stale-token
// requests get 401 and never reach the handler.
//
// Unlike the page middleware it does not consult the profile - API handlers
// that need the blocked/admin flags load them in their service layer, which
// keeps one store read per request instead of two.
func (g *Gate) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			writeUnauthorized(w)
			return
		}

		userID, err := g.sessions.ResolveSession(r.Context(), token)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeUnauthorized emits the same JSON error shape the API handlers use.
// The gate cannot import the handler package, so the body is spelled out
// here.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid session required"}`))
}
