package impersonation

import (
	"sync"

	"crm-platform/internal/accounts"
	"crm-platform/internal/audit"
)

// Registry keys one impersonation session per admin user id, so concurrent
// admins never share state. Sessions live until the process exits.
type Registry struct {
	dir   accounts.Directory
	audit *audit.Service

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(dir accounts.Directory, auditSvc *audit.Service) *Registry {
	return &Registry{dir: dir, audit: auditSvc, sessions: make(map[string]*Session)}
}

// ForAdmin returns the session owned by the given admin user, creating it on
// first use.
func (r *Registry) ForAdmin(adminUserID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[adminUserID]
	if !ok {
		s = NewSession(r.dir, r.audit)
		r.sessions[adminUserID] = s
	}
	return s
}
