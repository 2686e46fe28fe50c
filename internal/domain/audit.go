package domain

import "time"

// AuditAction enumerates the administrative mutations recorded in the audit log.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

// FieldChange captures the before/after values of a single field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// AuditEntry is an immutable record of one administrative mutation. Target
// name/email are snapshotted so history survives user removal.
type AuditEntry struct {
	ID            string                 `json:"id"`
	UserID        string                 `json:"userId"`
	UserEmail     string                 `json:"userEmail"`
	UserName      string                 `json:"userName"`
	Action        AuditAction            `json:"action"`
	ChangedBy     string                 `json:"changedBy"`
	ChangedByName string                 `json:"changedByName"`
	Changes       map[string]FieldChange `json:"changes"`
	Timestamp     time.Time              `json:"timestamp"`
}
