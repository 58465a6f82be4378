package calllog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// fakeRemote counts calls and fails on demand.
type fakeRemote struct {
	failing bool
	calls   int
	records []CallRecord
}

var errRemoteDown = errors.New("remote down")

func (f *fakeRemote) touch() error {
	f.calls++
	if f.failing {
		return errRemoteDown
	}
	return nil
}

func (f *fakeRemote) ListAll(ctx context.Context, organizationID string) ([]CallRecord, error) {
	if err := f.touch(); err != nil {
		return nil, err
	}
	return f.records, nil
}

func (f *fakeRemote) ListByClient(ctx context.Context, organizationID, clientID string) ([]CallRecord, error) {
	if err := f.touch(); err != nil {
		return nil, err
	}
	return f.records, nil
}

func (f *fakeRemote) Add(ctx context.Context, rec NewCallRecord) (CallRecord, error) {
	if err := f.touch(); err != nil {
		return CallRecord{}, err
	}
	stored := CallRecord{ID: "remote-id", OrganizationID: rec.OrganizationID, ClientID: rec.ClientID, Outcome: rec.Outcome, StartTime: rec.StartTime}
	f.records = append(f.records, stored)
	return stored, nil
}

func (f *fakeRemote) Update(ctx context.Context, organizationID, id string, patch Patch) error {
	return f.touch()
}

func (f *fakeRemote) Stats(ctx context.Context, organizationID string) (Stats, error) {
	if err := f.touch(); err != nil {
		return Stats{}, err
	}
	return ComputeStats(f.records, time.Now()), nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, organizationID string, fn func()) (func(), error) {
	if err := f.touch(); err != nil {
		return nil, err
	}
	return func() {}, nil
}

func newFacade(t *testing.T, remote Store) *Log {
	t.Helper()
	local, err := NewFileStore(filepath.Join(t.TempDir(), "call_log.json"))
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	return NewLog(remote, local, nil)
}

func TestLog_UsesRemoteWhileHealthy(t *testing.T) {
	remote := &fakeRemote{}
	log := newFacade(t, remote)

	rec, err := log.Add(context.Background(), NewCallRecord{OrganizationID: "org", ClientID: "c1", Outcome: OutcomeInitiated, StartTime: time.Now()})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if rec.ID != "remote-id" {
		t.Fatalf("expected remote to serve the add, got %+v", rec)
	}
	if !log.RemoteActive() {
		t.Fatalf("expected remote still active")
	}
}

func TestLog_FallbackIsSticky(t *testing.T) {
	remote := &fakeRemote{failing: true}
	log := newFacade(t, remote)
	ctx := context.Background()

	// First call trips the flag and is transparently served locally.
	rec, err := log.Add(ctx, NewCallRecord{OrganizationID: "org", ClientID: "c1", Outcome: OutcomeInitiated, StartTime: time.Now()})
	if err != nil {
		t.Fatalf("expected local fallback to absorb remote failure, got %v", err)
	}
	if rec.ID == "" || rec.ID == "remote-id" {
		t.Fatalf("expected locally assigned id, got %q", rec.ID)
	}
	if remote.calls != 1 {
		t.Fatalf("expected exactly 1 remote attempt, got %d", remote.calls)
	}

	// Remote recovers, but the session must keep using local.
	remote.failing = false
	for i := 0; i < 5; i++ {
		if _, err := log.ListAll(ctx, "org"); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if remote.calls != 1 {
		t.Fatalf("expected no further remote attempts, got %d", remote.calls)
	}
	if log.RemoteActive() {
		t.Fatalf("expected remote marked unhealthy")
	}

	// The fallback write must be visible through subsequent reads.
	all, err := log.ListAll(ctx, "org")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].ID != rec.ID {
		t.Fatalf("expected fallback write visible locally, got %+v", all)
	}
}

func TestLog_NoRemoteConfiguredGoesStraightToLocal(t *testing.T) {
	log := newFacade(t, nil)
	if log.RemoteActive() {
		t.Fatalf("expected remote inactive when not configured")
	}
	if _, err := log.Add(context.Background(), NewCallRecord{OrganizationID: "org", ClientID: "c1", Outcome: OutcomeInitiated, StartTime: time.Now()}); err != nil {
		t.Fatalf("add: %v", err)
	}
}

func TestLog_ResetRemoteRestoresRemote(t *testing.T) {
	remote := &fakeRemote{failing: true}
	log := newFacade(t, remote)
	ctx := context.Background()

	if _, err := log.ListAll(ctx, "org"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if log.RemoteActive() {
		t.Fatalf("expected tripped flag")
	}

	remote.failing = false
	log.ResetRemote()
	if !log.RemoteActive() {
		t.Fatalf("expected remote active after explicit reset")
	}
	before := remote.calls
	if _, err := log.ListAll(ctx, "org"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if remote.calls != before+1 {
		t.Fatalf("expected remote attempted after reset")
	}
}

func TestLog_ResetWithoutRemoteStaysLocal(t *testing.T) {
	log := newFacade(t, nil)
	log.ResetRemote()
	if log.RemoteActive() {
		t.Fatalf("reset must not invent a remote backend")
	}
}

func TestLog_SubscribeFallsBackToLocal(t *testing.T) {
	remote := &fakeRemote{failing: true}
	log := newFacade(t, remote)
	ctx := context.Background()

	notified := 0
	unsub, err := log.Subscribe(ctx, "org", func() { notified++ })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if _, err := log.Add(ctx, NewCallRecord{OrganizationID: "org", ClientID: "c1", Outcome: OutcomeInitiated, StartTime: time.Now()}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if notified != 1 {
		t.Fatalf("expected local subscription to fire, got %d", notified)
	}
}
