package domain

import "time"

// SystemActor marks mutations performed by the system itself rather than an
// authenticated administrator.
const SystemActor = "system"

// User is the domain model for accounts of the business management system.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Phone          string
	PhotoURL       string
	IsAdmin        bool
	EmailConfirmed bool
	ResetToken     *string
	ResetExpires   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CreatedBy      string
	UpdatedBy      string
}
