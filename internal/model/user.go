// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// PasswordHash is the bcrypt hash of the user's password. It must never be
// serialized to clients — the `json:"-"` tag makes encoding/json skip it, so
// even accidentally encoding a full User cannot leak the hash.
//
// IsAdmin gates the privileged case-management routes. New registrations are
// always non-admin; the flag is flipped directly in the database by an
// operator, there is no API for it.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}
