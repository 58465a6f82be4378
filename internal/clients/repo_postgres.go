package clients

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PostgresRepo stores client records in Postgres.
//
// Assumed table:
//
//	clients (id, organization_id, first_name, last_name, company,
//	  email1, email2, email3, phone1, phone2, phone3, notes, tags,
//	  created_at, updated_at)
//
// tags is stored as a JSON text column.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const clientColumns = `
id, organization_id, first_name, last_name, company,
email1, email2, email3, phone1, phone2, phone3,
notes, tags, created_at, updated_at
`

func (r *PostgresRepo) Insert(ctx context.Context, c Client) error {
	const q = `
INSERT INTO clients (
  id, organization_id, first_name, last_name, company,
  email1, email2, email3, phone1, phone2, phone3,
  notes, tags, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`
	var tags sql.NullString
	if len(c.Tags) > 0 {
		b, err := json.Marshal(c.Tags)
		if err != nil {
			return err
		}
		tags = sql.NullString{String: string(b), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.OrganizationID, c.FirstName, c.LastName, c.Company,
		c.Email1, c.Email2, c.Email3, c.Phone1, c.Phone2, c.Phone3,
		c.Notes, tags, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, organizationID string) ([]Client, error) {
	q := `SELECT ` + clientColumns + ` FROM clients WHERE organization_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, organizationID, id string) (Client, error) {
	q := `SELECT ` + clientColumns + ` FROM clients WHERE organization_id = $1 AND id = $2`
	c, err := scanClient(r.db.QueryRowContext(ctx, q, organizationID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (Client, error) {
	var c Client
	var tags sql.NullString
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.FirstName, &c.LastName, &c.Company,
		&c.Email1, &c.Email2, &c.Email3, &c.Phone1, &c.Phone2, &c.Phone3,
		&c.Notes, &tags, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Client{}, err
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &c.Tags); err != nil {
			return Client{}, err
		}
	}
	return c, nil
}
