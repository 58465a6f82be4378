package telephony

import (
	"context"
	"errors"
)

// Device is the provider-agnostic softphone boundary.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Initialization is gated on the audio-unlocked precondition (the browser
//   analog of audio permission); Initialize must fail with ErrAudioLocked
//   until the precondition holds.
// - Keep request/response types provider-agnostic.
type Device interface {
	Initialize(ctx context.Context) error
	Destroy() error

	// PlaceCall dials number and returns the provider's call-session id.
	PlaceCall(ctx context.Context, number string, meta CallMetadata) (string, error)
	Hangup(ctx context.Context) error

	State() State
}

// CallMetadata travels with an outbound call for provider-side correlation.
type CallMetadata struct {
	OrganizationID string `json:"organization_id"`
	ClientID       string `json:"client_id"`
	ClientName     string `json:"client_name,omitempty"`
}

type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StateConnecting    State = "connecting"
	StateInCall        State = "in_call"
)

var (
	ErrAudioLocked = errors.New("telephony: audio not unlocked")
	ErrNotReady    = errors.New("telephony: device not ready")
	ErrBusy        = errors.New("telephony: call already in progress")
)
