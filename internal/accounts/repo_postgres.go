package accounts

import (
	"context"
	"database/sql"

	"crm-platform/internal/rbac"
)

// PostgresDirectory resolves profiles and organizations from Postgres.
//
// Assumed tables:
// - profiles (id, user_id, organization_id, email, full_name, role, created_at)
// - organizations (id, owner_id, name, created_at)
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) FindSubAccountProfile(ctx context.Context, userID string) (Profile, error) {
	const q = `
SELECT id, user_id, COALESCE(organization_id, ''), email, COALESCE(full_name, ''), role, created_at
FROM profiles
WHERE user_id = $1 AND role = $2
LIMIT 2
`
	rows, err := d.db.QueryContext(ctx, q, userID, rbac.RoleSubAccount)
	if err != nil {
		return Profile{}, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.UserID, &p.OrganizationID, &p.Email, &p.FullName, &p.Role, &p.CreatedAt); err != nil {
			return Profile{}, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return Profile{}, err
	}
	// Exactly-one contract: zero or ambiguous results are both NotFound.
	if len(out) != 1 {
		return Profile{}, ErrNotFound
	}
	return out[0], nil
}

func (d *PostgresDirectory) FindOrganizationByOwner(ctx context.Context, userID string) (Organization, error) {
	const q = `
SELECT id, owner_id, name, created_at
FROM organizations
WHERE owner_id = $1
LIMIT 2
`
	rows, err := d.db.QueryContext(ctx, q, userID)
	if err != nil {
		return Organization{}, err
	}
	defer rows.Close()

	var out []Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.Name, &o.CreatedAt); err != nil {
			return Organization{}, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return Organization{}, err
	}
	if len(out) != 1 {
		return Organization{}, ErrNotFound
	}
	return out[0], nil
}
