package impersonation

import (
	"context"
	"errors"
	"sync"

	"crm-platform/internal/accounts"
	"crm-platform/internal/audit"
	"crm-platform/internal/rbac"
)

var (
	// ErrAccessDenied is returned when the acting user lacks admin capability.
	ErrAccessDenied = errors.New("impersonation: access denied")
	// ErrNotFound is returned when the target sub-account or its organization
	// cannot be resolved to exactly one row.
	ErrNotFound = errors.New("impersonation: sub-account not found")
)

// Session lets an admin act temporarily as a specific sub-account and answers
// "which identity/tenant is effectively active right now".
//
// States: Normal (no impersonation) and Impersonating(profile, organization).
// The profile/organization pair is set and cleared together, never one without
// the other. The session toggles for the life of the admin session; there is
// no terminal state.
//
// Every identity-scoped read or write in the application must resolve the
// effective identity through ActiveProfile/ActiveOrganizationID rather than
// reading the raw auth session.
type Session struct {
	dir   accounts.Directory
	audit *audit.Service

	mu      sync.RWMutex
	profile *accounts.Profile
	org     *accounts.Organization
}

func NewSession(dir accounts.Directory, auditSvc *audit.Service) *Session {
	return &Session{dir: dir, audit: auditSvc}
}

// SwitchToSubAccount enters impersonation of the sub-account identified by
// userID. The admin capability check happens here, at the point of entry.
// On any failure the prior state is left untouched.
func (s *Session) SwitchToSubAccount(ctx context.Context, admin accounts.Profile, userID string) error {
	if !admin.Loaded() || !rbac.IsAdmin(admin.Role) {
		return ErrAccessDenied
	}
	if s.dir == nil {
		return errors.New("impersonation: directory not configured")
	}

	profile, err := s.dir.FindSubAccountProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	org, err := s.dir.FindOrganizationByOwner(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	// Both lookups succeeded: set both fields together.
	s.mu.Lock()
	s.profile = &profile
	s.org = &org
	s.mu.Unlock()

	if s.audit != nil {
		// Best-effort; never blocks the switch.
		_ = s.audit.LogImpersonationEnter(ctx, org.ID, admin.UserID, admin.Role, userID)
	}
	return nil
}

// Exit unconditionally returns the session to Normal, clearing both fields
// together. It is idempotent: exiting while already Normal is a successful no-op.
func (s *Session) Exit(ctx context.Context, admin accounts.Profile) {
	s.mu.Lock()
	prevProfile := s.profile
	prevOrg := s.org
	s.profile = nil
	s.org = nil
	s.mu.Unlock()

	if prevProfile != nil && s.audit != nil {
		_ = s.audit.LogImpersonationExit(ctx, prevOrg.ID, admin.UserID, admin.Role, prevProfile.UserID)
	}
}

// Impersonating reports whether a sub-account identity is currently active.
func (s *Session) Impersonating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile != nil
}

// ActiveOrganizationID returns the impersonated organization's id, or "" for
// Normal state ("" means: use the admin's own organization, resolved by the
// caller).
func (s *Session) ActiveOrganizationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.org == nil {
		return ""
	}
	return s.org.ID
}

// ActiveProfile returns the impersonated profile if one is active, otherwise
// the passed-through admin profile.
func (s *Session) ActiveProfile(admin accounts.Profile) accounts.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return admin
	}
	return *s.profile
}
