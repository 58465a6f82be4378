package accounts

import (
	"context"
	"sync"

	"crm-platform/internal/rbac"
)

// MemoryDirectory is a simple in-memory directory useful for tests and
// local-only mode. It is not intended for production use.
type MemoryDirectory struct {
	mu       sync.Mutex
	profiles []Profile
	orgs     []Organization
}

func NewMemoryDirectory() *MemoryDirectory { return &MemoryDirectory{} }

func (d *MemoryDirectory) AddProfile(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles = append(d.profiles, p)
}

func (d *MemoryDirectory) AddOrganization(o Organization) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orgs = append(d.orgs, o)
}

func (d *MemoryDirectory) FindSubAccountProfile(ctx context.Context, userID string) (Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out Profile
	matches := 0
	for _, p := range d.profiles {
		if p.UserID == userID && p.Role == rbac.RoleSubAccount {
			out = p
			matches++
		}
	}
	if matches != 1 {
		return Profile{}, ErrNotFound
	}
	return out, nil
}

func (d *MemoryDirectory) FindOrganizationByOwner(ctx context.Context, userID string) (Organization, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out Organization
	matches := 0
	for _, o := range d.orgs {
		if o.OwnerID == userID {
			out = o
			matches++
		}
	}
	if matches != 1 {
		return Organization{}, ErrNotFound
	}
	return out, nil
}
