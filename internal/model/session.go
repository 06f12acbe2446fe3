package model

import "time"

// Session is a server-side record of one signed-in browser session.
//
// The session token handed to the browser is a signed JWT whose jti claim is
// this record's ID. A token is only accepted while its row exists, which is
// what makes forced sign-out (blocking a user) observable: deleting the rows
// turns every outstanding token for that user into an unauthenticated one on
// its next request, even though the JWT signature is still valid.
type Session struct {
	ID        string    `json:"id"        db:"id"` // random UUID, also the JWT jti
	UserID    string    `json:"userId"    db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}
