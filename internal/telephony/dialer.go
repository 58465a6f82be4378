package telephony

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"crm-platform/internal/calllog"
	"crm-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// ErrTooManyCalls is returned when the organization's concurrent-call cap is reached.
var ErrTooManyCalls = errors.New("telephony: concurrent call limit reached")

// Dialer orchestrates outbound calls: place the call on the device, append an
// initiated Call Record through the call-log facade, and resolve the record
// when the call completes.
type Dialer struct {
	device Device
	calls  *calllog.Log
	log    *slog.Logger

	// rdb enables the per-organization concurrent-call cap; optional.
	rdb           *redis.Client
	maxConcurrent int
	slotTTL       time.Duration

	clock func() time.Time
}

type DialerOptions struct {
	// MaxConcurrent caps simultaneous calls per organization (redis-backed).
	// Zero disables the cap.
	MaxConcurrent int
	SlotTTL       time.Duration
}

func NewDialer(device Device, calls *calllog.Log, rdb *redis.Client, log *slog.Logger, opts DialerOptions) *Dialer {
	if log == nil {
		log = slog.Default()
	}
	if opts.SlotTTL <= 0 {
		opts.SlotTTL = 2 * time.Hour
	}
	return &Dialer{
		device:        device,
		calls:         calls,
		log:           log,
		rdb:           rdb,
		maxConcurrent: opts.MaxConcurrent,
		slotTTL:       opts.SlotTTL,
		clock:         time.Now,
	}
}

type StartCallRequest struct {
	OrganizationID string
	ClientID       string
	ClientName     string
	PhoneNumber    string
	CreatedBy      string
}

// StartCall places the call and logs an initiated record. The record carries
// the provider session id so status callbacks can resolve it later.
func (d *Dialer) StartCall(ctx context.Context, req StartCallRequest) (calllog.CallRecord, error) {
	if req.OrganizationID == "" || req.ClientID == "" || req.PhoneNumber == "" {
		return calllog.CallRecord{}, calllog.ErrInvalidRecord
	}

	if d.rdb != nil && d.maxConcurrent > 0 {
		ok, err := utils.AcquireCallSlot(ctx, d.rdb, req.OrganizationID, d.maxConcurrent, d.slotTTL)
		if err != nil {
			// The cap is a protection, not a dependency; log and proceed.
			d.log.Warn("call slot acquire failed, proceeding uncapped", "err", err)
		} else if !ok {
			return calllog.CallRecord{}, ErrTooManyCalls
		}
	}

	sessionID, err := d.device.PlaceCall(ctx, req.PhoneNumber, CallMetadata{
		OrganizationID: req.OrganizationID,
		ClientID:       req.ClientID,
		ClientName:     req.ClientName,
	})
	if err != nil {
		d.releaseSlot(ctx, req.OrganizationID)
		return calllog.CallRecord{}, err
	}

	rec, err := d.calls.Add(ctx, calllog.NewCallRecord{
		OrganizationID:    req.OrganizationID,
		ClientID:          req.ClientID,
		ClientName:        req.ClientName,
		PhoneNumber:       req.PhoneNumber,
		StartTime:         d.clock(),
		Outcome:           calllog.OutcomeInitiated,
		CreatedBy:         req.CreatedBy,
		ProviderSessionID: sessionID,
	})
	if err != nil {
		// The call is live but unlogged; hang up rather than leak it.
		_ = d.device.Hangup(ctx)
		d.releaseSlot(ctx, req.OrganizationID)
		return calllog.CallRecord{}, err
	}
	return rec, nil
}

type CompleteCallRequest struct {
	OrganizationID  string
	CallID          string
	Outcome         calllog.Outcome
	DurationSeconds int
	Notes           string
}

// Complete hangs up and resolves the call record with its final outcome.
func (d *Dialer) Complete(ctx context.Context, req CompleteCallRequest) error {
	if req.OrganizationID == "" || req.CallID == "" || !calllog.ValidOutcome(req.Outcome) {
		return calllog.ErrInvalidRecord
	}

	_ = d.device.Hangup(ctx)
	d.releaseSlot(ctx, req.OrganizationID)

	end := d.clock()
	patch := calllog.Patch{
		Outcome: &req.Outcome,
		EndTime: &end,
	}
	if req.Outcome == calllog.OutcomeConnected {
		patch.DurationSeconds = &req.DurationSeconds
	}
	if req.Notes != "" {
		patch.Notes = &req.Notes
	}
	return d.calls.Update(ctx, req.OrganizationID, req.CallID, patch)
}

func (d *Dialer) releaseSlot(ctx context.Context, organizationID string) {
	if d.rdb == nil || d.maxConcurrent <= 0 {
		return
	}
	if err := utils.ReleaseCallSlot(ctx, d.rdb, organizationID); err != nil {
		d.log.Warn("call slot release failed", "err", err)
	}
}
