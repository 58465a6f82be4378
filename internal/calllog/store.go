package calllog

import (
	"context"
	"errors"
)

// Store is the logical call-log contract shared by the local file store and
// the remote Postgres store. All reads and writes are organization-scoped.
type Store interface {
	ListAll(ctx context.Context, organizationID string) ([]CallRecord, error)
	ListByClient(ctx context.Context, organizationID, clientID string) ([]CallRecord, error)
	Add(ctx context.Context, rec NewCallRecord) (CallRecord, error)
	Update(ctx context.Context, organizationID, id string, patch Patch) error
	Stats(ctx context.Context, organizationID string) (Stats, error)

	// Subscribe registers fn to run after every successful Add/Update visible
	// to this store and returns a disposer that detaches it.
	Subscribe(ctx context.Context, organizationID string, fn func()) (func(), error)
}

var (
	// ErrInvalidRecord is returned for records missing required fields.
	ErrInvalidRecord = errors.New("calllog: invalid record")
)
