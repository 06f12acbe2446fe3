// Package gate implements the per-request access gate: the single
// enforcement point that decides, before any page logic runs, whether a
// request is allowed through, redirected, or forcibly signed out.
//
// The decision logic lives in Decide, a function of (path, token) over two
// injected lookups - session resolution and profile loading. The HTTP
// middleware in middleware.go is a thin adapter that performs the cookie and
// redirect I/O around it, so the ordering rules are testable without a
// server.
package gate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rafid/todohub/internal/model"
)

// Route prefixes the gate cares about. The members area is everything under
// PathDashboard; PathAdmin is nested inside the protected surface but
// additionally requires the admin flag.
const (
	PathLogin     = "/login"
	PathSignup    = "/signup"
	PathRoot      = "/"
	PathDashboard = "/dashboard"
	PathAdmin     = "/admin"
)

// Disposition is the gate's decision for one request.
type Disposition int

const (
	// Allow lets the request through to its handler.
	Allow Disposition = iota
	// RedirectLogin sends the caller to the login page. No session side
	// effects - this is "go log in", for anonymous callers on protected
	// paths.
	RedirectLogin
	// RedirectDashboard sends the caller to the members-area root: either a
	// signed-in user visiting an anonymous entry point, or a non-admin
	// visiting the admin area. A permission failure, not an authentication
	// failure - the session stays intact.
	RedirectDashboard
	// SignOutRedirect revokes every session of the caller and sends them to
	// the login page with the blocked marker. The revocation is a guaranteed
	// side effect, not just a redirect: the stale token is unauthenticated
	// on its next request.
	SignOutRedirect
)

// String names the disposition for logs and metrics.
func (d Disposition) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDashboard:
		return "redirect_dashboard"
	case SignOutRedirect:
		return "sign_out_redirect"
	default:
		return "unknown"
	}
}

// SessionResolver turns a raw session token into the user it belongs to.
// Resolution fails for missing, malformed, expired, and revoked tokens -
// the gate treats all of those identically as "no session".
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (userID string, err error)
}

// ProfileLoader fetches the account profile carrying the authorization
// flags.
type ProfileLoader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// SessionRevoker force-invalidates every session of a user. Invoked by the
// gate when it discovers the caller is blocked.
type SessionRevoker interface {
	RevokeAllSessions(ctx context.Context, userID string) error
}

// DecisionRecorder counts gate outcomes. Satisfied by *metrics.Collector.
type DecisionRecorder interface {
	RecordGateDecision(disposition string)
}

// Gate evaluates the access rules for each request. It holds no per-request
// state; every evaluation reads current store state fresh.
type Gate struct {
	sessions SessionResolver
	profiles ProfileLoader
	revoker  SessionRevoker
	recorder DecisionRecorder // may be nil
	logger   *slog.Logger
}

// New creates a Gate. recorder may be nil when metrics are not wired (tests).
func New(sessions SessionResolver, profiles ProfileLoader, revoker SessionRevoker, recorder DecisionRecorder, logger *slog.Logger) *Gate {
	return &Gate{
		sessions: sessions,
		profiles: profiles,
		revoker:  revoker,
		recorder: recorder,
		logger:   logger,
	}
}

// Decide evaluates the gate rules for one request and returns the
// disposition. token is the raw session token ("" when the cookie is
// absent).
//
// The rules run in strict order, first match wins:
//
//  1. no/invalid session + protected path → RedirectLogin
//  2. session + protected path → load profile:
//     a. blocked → revoke all sessions, SignOutRedirect
//     b. admin path without admin flag → RedirectDashboard
//     c. otherwise → Allow
//  3. session + anonymous entry point (/login, /signup, /) →
//     RedirectDashboard, without a profile lookup
//  4. anything else → Allow
//
// The ordering matters: the no-session check short-circuits before any
// profile lookup, and the blocked check runs before the admin check so a
// blocked admin cannot pass on stale admin status.
//
// Failure mode: if the profile lookup fails, Decide fails OPEN - it logs and
// allows the request through. Failing closed would lock out every user on a
// transient store error. This is the one fixed choice for every path; it is
// never varied per code path.
func (g *Gate) Decide(ctx context.Context, path, token string) Disposition {
	d := g.decide(ctx, path, token)
	if g.recorder != nil {
		g.recorder.RecordGateDecision(d.String())
	}
	return d
}

func (g *Gate) decide(ctx context.Context, path, token string) Disposition {
	var userID string
	if token != "" {
		id, err := g.sessions.ResolveSession(ctx, token)
		if err == nil {
			userID = id
		}
		// Resolution failures fall through with userID == "": an expired or
		// revoked token is exactly an anonymous caller.
	}

	if isProtected(path) {
		// Rule 1: anonymous on a protected path.
		if userID == "" {
			return RedirectLogin
		}

		// Rule 2: authenticated on a protected path.
		user, err := g.profiles.GetUserByID(ctx, userID)
		if err != nil {
			// Fail open: the blocked/admin checks cannot complete.
			g.logger.Error("gate: profile lookup failed, allowing through",
				slog.String("userID", userID),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return Allow
		}

		// 2a: blocked overrides everything, including admin status.
		if user.IsBlocked {
			if err := g.revoker.RevokeAllSessions(ctx, userID); err != nil {
				// The redirect still happens; the revocation is retried on
				// the user's next request since they are still blocked.
				g.logger.Error("gate: revoking sessions for blocked user failed",
					slog.String("userID", userID),
					slog.String("error", err.Error()),
				)
			}
			g.logger.Info("gate: forced sign-out of blocked user",
				slog.String("userID", userID),
				slog.String("path", path),
			)
			return SignOutRedirect
		}

		// 2b: admin area requires the admin flag.
		if isAdminArea(path) && !user.IsAdmin {
			return RedirectDashboard
		}

		// 2c
		return Allow
	}

	// Rule 3: a signed-in user never sees the anonymous entry points.
	if userID != "" && isAnonymousEntry(path) {
		return RedirectDashboard
	}

	// Rule 4
	return Allow
}

// isProtected reports whether the path is in the members or admin area.
func isProtected(path string) bool {
	return strings.HasPrefix(path, PathDashboard) || strings.HasPrefix(path, PathAdmin)
}

// isAdminArea reports whether the path requires the admin flag.
func isAdminArea(path string) bool {
	return strings.HasPrefix(path, PathAdmin)
}

// isAnonymousEntry reports whether the path is an entry point meant for
// anonymous users. Exact matches only - /signup/help is not an entry point.
func isAnonymousEntry(path string) bool {
	return path == PathLogin || path == PathSignup || path == PathRoot
}
