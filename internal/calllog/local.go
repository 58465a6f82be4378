package calllog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrPersistence is returned when the local store cannot write its backing file
// (disk full, permissions, serialization failure).
var ErrPersistence = errors.New("calllog: persist failed")

// FileStore is the durable fallback call log: one JSON document on disk holding
// the full record collection, read-modify-written on every mutation.
//
// Timestamps round-trip through RFC 3339 text in the file.
//
// Known limitation: mutations are serialized by the store mutex within this
// process only; a second process writing the same file can still lose updates.
type FileStore struct {
	path string

	mu   sync.Mutex
	subs subscriberSet
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("calllog: file path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("calllog: create store dir: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) ListAll(ctx context.Context, organizationID string) ([]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(s.load(), organizationID, ""), nil
}

func (s *FileStore) ListByClient(ctx context.Context, organizationID, clientID string) ([]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(s.load(), organizationID, clientID), nil
}

func (s *FileStore) Add(ctx context.Context, rec NewCallRecord) (CallRecord, error) {
	if rec.OrganizationID == "" || rec.ClientID == "" || !ValidOutcome(rec.Outcome) {
		return CallRecord{}, ErrInvalidRecord
	}
	if rec.EndTime != nil && rec.EndTime.Before(rec.StartTime) {
		return CallRecord{}, ErrInvalidRecord
	}

	s.mu.Lock()
	all := s.load()
	stored := CallRecord{
		ID:                s.freshID(all),
		OrganizationID:    rec.OrganizationID,
		ClientID:          rec.ClientID,
		ClientName:        rec.ClientName,
		PhoneNumber:       rec.PhoneNumber,
		StartTime:         rec.StartTime,
		EndTime:           rec.EndTime,
		DurationSeconds:   rec.DurationSeconds,
		Outcome:           rec.Outcome,
		Notes:             rec.Notes,
		FollowUp:          rec.FollowUp,
		FollowUpDate:      rec.FollowUpDate,
		CreatedBy:         rec.CreatedBy,
		Tags:              rec.Tags,
		ProviderSessionID: rec.ProviderSessionID,
	}

	err := s.persist(append(all, stored))
	s.mu.Unlock()
	if err != nil {
		return CallRecord{}, err
	}

	// Notify outside the store lock; subscribers typically re-read the store.
	s.subs.notify()
	return stored, nil
}

func (s *FileStore) Update(ctx context.Context, organizationID, id string, patch Patch) error {
	s.mu.Lock()

	all := s.load()
	for i, r := range all {
		if r.ID != id || r.OrganizationID != organizationID {
			continue
		}
		merged := patch.Apply(r)
		if !ValidOutcome(merged.Outcome) {
			s.mu.Unlock()
			return ErrInvalidRecord
		}
		if merged.EndTime != nil && merged.EndTime.Before(merged.StartTime) {
			s.mu.Unlock()
			return ErrInvalidRecord
		}
		all[i] = merged
		err := s.persist(all)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		s.subs.notify()
		return nil
	}

	// Absent id is a no-op, not an error.
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Stats(ctx context.Context, organizationID string) (Stats, error) {
	recs, err := s.ListAll(ctx, organizationID)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(recs, time.Now()), nil
}

func (s *FileStore) Subscribe(ctx context.Context, organizationID string, fn func()) (func(), error) {
	return s.subs.add(fn), nil
}

// load reads the full collection. Missing or malformed data yields an empty
// collection rather than an error. Callers must hold s.mu.
func (s *FileStore) load() []CallRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var out []CallRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// persist writes the full collection back. Callers must hold s.mu.
func (s *FileStore) persist(all []CallRecord) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *FileStore) freshID(existing []CallRecord) string {
	taken := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		taken[r.ID] = struct{}{}
	}
	for {
		id := uuid.NewString()
		if _, ok := taken[id]; !ok {
			return id
		}
	}
}

func (s *FileStore) filter(all []CallRecord, organizationID, clientID string) []CallRecord {
	out := make([]CallRecord, 0, len(all))
	for _, r := range all {
		if r.OrganizationID != organizationID {
			continue
		}
		if clientID != "" && r.ClientID != clientID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// subscriberSet is an explicit observer registry owned by the store. Disposers
// detach individual subscribers; multiple independent stores get independent sets.
type subscriberSet struct {
	mu   sync.Mutex
	next int
	fns  map[int]func()
}

func (s *subscriberSet) add(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func())
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscriberSet) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
