package domain

import "time"

// PushSubscription is an opaque delivery address plus encryption keys for a
// browser's notification channel. Endpoint is unique.
type PushSubscription struct {
	ID        string
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}
