package clients

import "time"

// Client is a tenant-scoped CRM client record.
//
// Multi-tenant invariant: OrganizationID is required on every row.
type Client struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`

	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Company   string `json:"company,omitempty" db:"company"`

	Email1 string `json:"email1" db:"email1"`
	Email2 string `json:"email2,omitempty" db:"email2"`
	Email3 string `json:"email3,omitempty" db:"email3"`

	Phone1 string `json:"phone1" db:"phone1"`
	Phone2 string `json:"phone2,omitempty" db:"phone2"`
	Phone3 string `json:"phone3,omitempty" db:"phone3"`

	Notes string   `json:"notes,omitempty" db:"notes"`
	Tags  []string `json:"tags,omitempty" db:"tags"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
