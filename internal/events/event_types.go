package events

import (
	"time"

	"github.com/spec-kit/party-admin-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventUserCreated    EventType = "user_created"
	EventUserUpdated    EventType = "user_updated"
	EventUserDeleted    EventType = "user_deleted"
	EventCacheActivated EventType = "cache_activated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserMutatedPayload payload for admin create/update/delete events.
type UserMutatedPayload struct {
	Action  domain.AuditAction            `json:"action"`
	Email   string                        `json:"email"`
	Changes map[string]domain.FieldChange `json:"changes,omitempty"`
}

// CacheActivatedPayload payload.
type CacheActivatedPayload struct {
	Version string `json:"version"`
	Pruned  int    `json:"pruned"`
}
