package model

import "time"

// VerificationKey binds an email address to a pending crowmail subscription.
type VerificationKey struct {
	Token     string    `db:"token"`
	Email     string    `db:"email"`
	Type      string    `db:"type"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
