package clients

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("clients: not found")

// Repository is the persistence contract for client records.
type Repository interface {
	Insert(ctx context.Context, c Client) error
	List(ctx context.Context, organizationID string) ([]Client, error)
	Get(ctx context.Context, organizationID, id string) (Client, error)
}

// MemoryRepo is a simple in-memory repository useful for tests and local-only
// mode. It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	records []Client
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(ctx context.Context, c Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, c)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, organizationID string) ([]Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Client, 0)
	for _, c := range r.records {
		if c.OrganizationID == organizationID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MemoryRepo) Get(ctx context.Context, organizationID, id string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.records {
		if c.OrganizationID == organizationID && c.ID == id {
			return c, nil
		}
	}
	return Client{}, ErrNotFound
}
