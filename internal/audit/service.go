package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrganizationID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogImpersonationEnter records an admin starting to act as a sub-account.
func (s *Service) LogImpersonationEnter(ctx context.Context, organizationID, actorUserID, actorRole, targetUserID string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeImpersonationEnter,
		ActorUserID:    actorUserID,
		ActorRole:      actorRole,
		TargetUserID:   targetUserID,
		Message:        "impersonation started",
	})
}

// LogImpersonationExit records the end of an impersonation session.
func (s *Service) LogImpersonationExit(ctx context.Context, organizationID, actorUserID, actorRole, targetUserID string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeImpersonationExit,
		ActorUserID:    actorUserID,
		ActorRole:      actorRole,
		TargetUserID:   targetUserID,
		Message:        "impersonation ended",
	})
}

// LogBulkImport records the outcome of a client bulk import.
func (s *Service) LogBulkImport(ctx context.Context, organizationID, actorUserID, actorRole, metadata string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeBulkImport,
		ActorUserID:    actorUserID,
		ActorRole:      actorRole,
		Message:        "clients imported",
		Metadata:       metadata,
	})
}
