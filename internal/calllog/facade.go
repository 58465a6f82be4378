package calllog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Log is the call-log entry point for the rest of the application. It prefers
// the remote store and falls back to the local file store on any remote failure.
//
// Health policy: optimistic at startup (remote considered healthy only when one
// is configured), pessimistic after the first failure: the flag flips false
// once and stays false for the lifetime of the process. Remote failures are
// absorbed here and never surfaced to callers; the only explicit way back to
// remote is ResetRemote.
//
// Subscriptions attach to whichever backend is active at subscribe time; a
// backend switch after that does not re-home live subscriptions.
type Log struct {
	remote Store
	local  *FileStore
	log    *slog.Logger

	mu            sync.Mutex
	remoteHealthy bool
}

func NewLog(remote Store, local *FileStore, log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{
		remote:        remote,
		local:         local,
		log:           log,
		remoteHealthy: remote != nil,
	}
}

// RemoteActive reports whether calls are currently served by the remote store.
func (l *Log) RemoteActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remote != nil && l.remoteHealthy
}

// ResetRemote marks the remote healthy again. This is the explicit
// re-initialization hook; the facade never retries remote on its own.
func (l *Log) ResetRemote() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remote != nil {
		l.remoteHealthy = true
	}
}

func (l *Log) markRemoteDown(op string, err error) {
	l.mu.Lock()
	l.remoteHealthy = false
	l.mu.Unlock()
	l.log.Warn("call log remote unavailable, serving from local store", "op", op, "err", err)
}

func (l *Log) ListAll(ctx context.Context, organizationID string) ([]CallRecord, error) {
	if l.RemoteActive() {
		out, err := l.remote.ListAll(ctx, organizationID)
		if err == nil {
			return out, nil
		}
		l.markRemoteDown("list_all", err)
	}
	return l.local.ListAll(ctx, organizationID)
}

func (l *Log) ListByClient(ctx context.Context, organizationID, clientID string) ([]CallRecord, error) {
	if l.RemoteActive() {
		out, err := l.remote.ListByClient(ctx, organizationID, clientID)
		if err == nil {
			return out, nil
		}
		l.markRemoteDown("list_by_client", err)
	}
	return l.local.ListByClient(ctx, organizationID, clientID)
}

func (l *Log) Add(ctx context.Context, rec NewCallRecord) (CallRecord, error) {
	if l.RemoteActive() {
		out, err := l.remote.Add(ctx, rec)
		if err == nil {
			return out, nil
		}
		// Caller-side mistakes are not a backend failure; do not trip the flag.
		if errors.Is(err, ErrInvalidRecord) {
			return CallRecord{}, err
		}
		l.markRemoteDown("add", err)
	}
	return l.local.Add(ctx, rec)
}

func (l *Log) Update(ctx context.Context, organizationID, id string, patch Patch) error {
	if l.RemoteActive() {
		err := l.remote.Update(ctx, organizationID, id, patch)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInvalidRecord) {
			return err
		}
		l.markRemoteDown("update", err)
	}
	return l.local.Update(ctx, organizationID, id, patch)
}

func (l *Log) Stats(ctx context.Context, organizationID string) (Stats, error) {
	if l.RemoteActive() {
		out, err := l.remote.Stats(ctx, organizationID)
		if err == nil {
			return out, nil
		}
		l.markRemoteDown("stats", err)
	}
	return l.local.Stats(ctx, organizationID)
}

// Subscribe registers fn against the active backend and returns its disposer.
func (l *Log) Subscribe(ctx context.Context, organizationID string, fn func()) (func(), error) {
	if l.RemoteActive() {
		unsub, err := l.remote.Subscribe(ctx, organizationID, fn)
		if err == nil {
			return unsub, nil
		}
		l.markRemoteDown("subscribe", err)
	}
	return l.local.Subscribe(ctx, organizationID, fn)
}
