// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account profile.
//
// Email is the external identifier the user signs in with. It is unique and
// immutable after signup. The internal ID (xid) is the primary key everywhere
// else - todos reference it, sessions carry it, admin operations target it.
//
// IsBlocked overrides IsAdmin for access decisions: a blocked admin is still
// denied everywhere. That rule lives in the gate package; the fields live here.
//
// PasswordHash carries the bcrypt hash. The json:"-" tag ensures it cannot
// leak through an API response, no matter which handler serializes a User.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	FullName     string    `json:"fullName"  db:"full_name"` // optional display name (may be empty)
	PasswordHash string    `json:"-"         db:"password_hash"`
	IsAdmin      bool      `json:"isAdmin"   db:"is_admin"`
	IsBlocked    bool      `json:"isBlocked" db:"is_blocked"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
