package telephony

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"crm-platform/internal/calllog"
)

func newTestDialer(t *testing.T) (*Dialer, *SimulatedDevice, *calllog.Log) {
	t.Helper()
	store, err := calllog.NewFileStore(filepath.Join(t.TempDir(), "calls.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	log := calllog.NewLog(nil, store, nil)
	dev := NewSimulatedDevice()
	dev.UnlockAudio()
	if err := dev.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return NewDialer(dev, log, nil, nil, DialerOptions{}), dev, log
}

func TestDeviceInitializeRequiresAudioUnlock(t *testing.T) {
	dev := NewSimulatedDevice()
	if err := dev.Initialize(context.Background()); err != ErrAudioLocked {
		t.Fatalf("Initialize before unlock: got %v, want ErrAudioLocked", err)
	}
	dev.UnlockAudio()
	if err := dev.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize after unlock: %v", err)
	}
	if dev.State() != StateReady {
		t.Fatalf("state = %q, want ready", dev.State())
	}
}

func TestDevicePlaceCallLifecycle(t *testing.T) {
	dev := NewSimulatedDevice()
	ctx := context.Background()

	if _, err := dev.PlaceCall(ctx, "+15550001111", CallMetadata{}); err != ErrNotReady {
		t.Fatalf("PlaceCall uninitialized: got %v, want ErrNotReady", err)
	}

	dev.UnlockAudio()
	if err := dev.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	sid, err := dev.PlaceCall(ctx, "+15550001111", CallMetadata{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("PlaceCall: %v", err)
	}
	if sid == "" {
		t.Fatal("expected a session id")
	}
	if _, err := dev.PlaceCall(ctx, "+15550002222", CallMetadata{}); err != ErrBusy {
		t.Fatalf("PlaceCall while in call: got %v, want ErrBusy", err)
	}
	if err := dev.Hangup(ctx); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	if dev.State() != StateReady {
		t.Fatalf("state after hangup = %q, want ready", dev.State())
	}

	if err := dev.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := dev.PlaceCall(ctx, "+15550001111", CallMetadata{}); err != ErrNotReady {
		t.Fatalf("PlaceCall after destroy: got %v, want ErrNotReady", err)
	}
}

func TestStartCallLogsInitiatedRecord(t *testing.T) {
	d, dev, log := newTestDialer(t)
	ctx := context.Background()

	rec, err := d.StartCall(ctx, StartCallRequest{
		OrganizationID: "org-7",
		ClientID:       "client-1",
		ClientName:     "Ada Lovelace",
		PhoneNumber:    "+15550001111",
		CreatedBy:      "user-42",
	})
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if rec.Outcome != calllog.OutcomeInitiated {
		t.Fatalf("outcome = %q, want initiated", rec.Outcome)
	}
	if rec.ProviderSessionID == "" {
		t.Fatal("record should carry the provider session id")
	}
	if dev.LastNumber != "+15550001111" {
		t.Fatalf("dialed number = %q", dev.LastNumber)
	}
	if dev.LastMeta.ClientID != "client-1" {
		t.Fatalf("call metadata client = %q", dev.LastMeta.ClientID)
	}

	got, err := log.ListByClient(ctx, "org-7", "client-1")
	if err != nil {
		t.Fatalf("ListByClient: %v", err)
	}
	if len(got) != 1 || got[0].ID != rec.ID {
		t.Fatalf("expected the initiated record in the log, got %+v", got)
	}
}

func TestStartCallValidatesRequest(t *testing.T) {
	d, _, _ := newTestDialer(t)
	_, err := d.StartCall(context.Background(), StartCallRequest{OrganizationID: "org-7"})
	if err != calllog.ErrInvalidRecord {
		t.Fatalf("got %v, want ErrInvalidRecord", err)
	}
}

func TestCompleteResolvesConnectedCall(t *testing.T) {
	d, dev, log := newTestDialer(t)
	ctx := context.Background()

	start := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	d.clock = func() time.Time { return start }

	rec, err := d.StartCall(ctx, StartCallRequest{
		OrganizationID: "org-7",
		ClientID:       "client-1",
		PhoneNumber:    "+15550001111",
		CreatedBy:      "user-42",
	})
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	end := start.Add(42 * time.Second)
	d.clock = func() time.Time { return end }
	err = d.Complete(ctx, CompleteCallRequest{
		OrganizationID:  "org-7",
		CallID:          rec.ID,
		Outcome:         calllog.OutcomeConnected,
		DurationSeconds: 42,
		Notes:           "follow up next week",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if dev.State() != StateReady {
		t.Fatalf("device state after complete = %q, want ready", dev.State())
	}

	got, err := log.ListByClient(ctx, "org-7", "client-1")
	if err != nil {
		t.Fatalf("ListByClient: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	r := got[0]
	if r.Outcome != calllog.OutcomeConnected {
		t.Fatalf("outcome = %q, want connected", r.Outcome)
	}
	if r.DurationSeconds != 42 {
		t.Fatalf("duration = %d, want 42", r.DurationSeconds)
	}
	if r.EndTime == nil || !r.EndTime.Equal(end) {
		t.Fatalf("end time = %v, want %v", r.EndTime, end)
	}
	if r.Notes != "follow up next week" {
		t.Fatalf("notes = %q", r.Notes)
	}
}

func TestCompleteSkipsDurationForUnconnectedOutcome(t *testing.T) {
	d, _, log := newTestDialer(t)
	ctx := context.Background()

	rec, err := d.StartCall(ctx, StartCallRequest{
		OrganizationID: "org-7",
		ClientID:       "client-1",
		PhoneNumber:    "+15550001111",
	})
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	err = d.Complete(ctx, CompleteCallRequest{
		OrganizationID:  "org-7",
		CallID:          rec.ID,
		Outcome:         calllog.OutcomeNoAnswer,
		DurationSeconds: 30,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, err := log.ListByClient(ctx, "org-7", "client-1")
	if err != nil {
		t.Fatalf("ListByClient: %v", err)
	}
	if got[0].DurationSeconds != 0 {
		t.Fatalf("duration = %d, want 0 for no-answer", got[0].DurationSeconds)
	}
	if got[0].Outcome != calllog.OutcomeNoAnswer {
		t.Fatalf("outcome = %q", got[0].Outcome)
	}
}

func TestCompleteRejectsInvalidOutcome(t *testing.T) {
	d, _, _ := newTestDialer(t)
	err := d.Complete(context.Background(), CompleteCallRequest{
		OrganizationID: "org-7",
		CallID:         "some-id",
		Outcome:        calllog.Outcome("teleported"),
	})
	if err != calllog.ErrInvalidRecord {
		t.Fatalf("got %v, want ErrInvalidRecord", err)
	}
}
