// Package auth provides session token signing/validation and password hashing.
//
// SESSION TOKEN DESIGN:
// The browser holds a signed JWT in an HttpOnly cookie, but the JWT alone is
// NOT enough to be signed in. Each token carries a session ID in the "jti"
// claim, and the gate only accepts the token while the matching session row
// exists in the store. This hybrid gives us:
//   - tamper-proofing from the signature (no DB hit for forged tokens)
//   - real revocation from the session table (blocking a user deletes their
//     rows, so every outstanding token dies on its next request)
//
// A plain stateless JWT could not satisfy the forced sign-out requirement:
// "logout" would only mean waiting for expiry.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "todohub"

// TokenService signs and verifies session tokens.
//
// It holds the HMAC secret used for both operations. The secret should be at
// least 32 bytes of random data in production, e.g. $(openssl rand -hex 32).
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and session
// lifetime.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the configured session lifetime. The auth service uses the
// same value for the session row's expires_at and the cookie Max-Age.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims embeds jwt.RegisteredClaims; we use only standard fields:
// sub = user ID, jti = session ID.
type claims struct {
	jwt.RegisteredClaims
}

// Issue creates a signed token for the given user and returns the token
// string along with the freshly generated session ID. The caller is
// responsible for persisting the session row - a token whose jti has no row
// is rejected by Validate's consumers.
//
// The session ID is a random UUIDv4 rather than a sortable xid: session
// identifiers should carry no structure an attacker could predict.
func (s *TokenService) Issue(userID string) (token, sessionID string, err error) {
	now := time.Now()
	sessionID = uuid.NewString()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    issuer,
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, sessionID, nil
}

// Validate parses and verifies a token string, returning the user ID (sub)
// and session ID (jti) it encodes.
//
// Checks performed by the jwt library: signature, expiry, issuer, and the
// signing algorithm (pinned to HS256 to rule out algorithm-confusion
// attacks). Validate does NOT consult the session table - that is the
// caller's second step.
func (s *TokenService) Validate(tokenStr string) (userID, sessionID string, err error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", fmt.Errorf("auth: token expired")
		}
		return "", "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" || c.ID == "" {
		return "", "", fmt.Errorf("auth: token missing subject or session id")
	}

	return c.Subject, c.ID, nil
}
