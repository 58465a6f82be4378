package accounts

import "time"

// Profile is a user profile row.
//
// Multi-tenant invariant: OrganizationID is required for sub-account profiles.
// Role values come from internal/rbac.
type Profile struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	OrganizationID string    `json:"organization_id,omitempty" db:"organization_id"`
	Email          string    `json:"email" db:"email"`
	FullName       string    `json:"full_name,omitempty" db:"full_name"`
	Role           string    `json:"role" db:"role"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Loaded reports whether the profile has been resolved from storage.
// Capability checks must not pass on a zero-value profile.
func (p Profile) Loaded() bool { return p.UserID != "" }

// Organization is the tenancy unit that owns clients and calls.
type Organization struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
