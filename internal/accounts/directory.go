package accounts

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a lookup resolves to zero rows, or to more than
// one row where exactly one is required.
var ErrNotFound = errors.New("accounts: not found")

// Directory resolves profiles and organizations.
//
// Contract:
// - FindSubAccountProfile must match exactly one profile with the given user_id
//   and the subaccount role; zero or many is ErrNotFound.
// - FindOrganizationByOwner must match exactly one organization owned by user_id;
//   zero or many is ErrNotFound.
type Directory interface {
	FindSubAccountProfile(ctx context.Context, userID string) (Profile, error)
	FindOrganizationByOwner(ctx context.Context, userID string) (Organization, error)
}
