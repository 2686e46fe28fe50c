package domain

import "time"

// ConfirmationToken is a single-use email confirmation credential. At most one
// valid token exists per pending confirmation; tokens older than the
// configured TTL are purged lazily on each confirmation attempt.
type ConfirmationToken struct {
	Token     string
	UserID    string
	Email     string
	CreatedAt time.Time
}
