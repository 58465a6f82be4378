package telephony

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SimulatedDevice is an in-process Device for tests and local development.
// It enforces the same lifecycle rules as a real provider adapter.
type SimulatedDevice struct {
	mu            sync.Mutex
	audioUnlocked bool
	state         State

	// LastNumber and LastMeta expose the most recent dial for assertions.
	LastNumber string
	LastMeta   CallMetadata
}

func NewSimulatedDevice() *SimulatedDevice {
	return &SimulatedDevice{state: StateUninitialized}
}

// UnlockAudio satisfies the audio precondition (user-gesture analog).
func (d *SimulatedDevice) UnlockAudio() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.audioUnlocked = true
}

func (d *SimulatedDevice) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.audioUnlocked {
		return ErrAudioLocked
	}
	d.state = StateReady
	return nil
}

func (d *SimulatedDevice) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateUninitialized
	return nil
}

func (d *SimulatedDevice) PlaceCall(ctx context.Context, number string, meta CallMetadata) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case StateUninitialized:
		return "", ErrNotReady
	case StateConnecting, StateInCall:
		return "", ErrBusy
	}
	d.state = StateInCall
	d.LastNumber = number
	d.LastMeta = meta
	return "sim-" + uuid.NewString(), nil
}

func (d *SimulatedDevice) Hangup(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateInCall || d.state == StateConnecting {
		d.state = StateReady
	}
	return nil
}

func (d *SimulatedDevice) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
