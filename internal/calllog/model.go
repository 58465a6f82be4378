package calllog

import "time"

// CallRecord is one logged call attempt/outcome tied to a client.
//
// Multi-tenant invariant: OrganizationID is required on every row.
//
// Field invariants:
// - ID is assigned by the store that first persists the record and never changes.
// - DurationSeconds is meaningful only when Outcome == connected.
// - EndTime, when set, is >= StartTime.
// - Records are appended and partially updated, never deleted.
type CallRecord struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	ClientID       string `json:"client_id" db:"client_id"`
	ClientName     string `json:"client_name" db:"client_name"`
	PhoneNumber    string `json:"phone_number" db:"phone_number"`

	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`

	DurationSeconds int `json:"duration,omitempty" db:"duration"`

	Outcome Outcome `json:"outcome" db:"outcome"`

	Notes        string     `json:"notes,omitempty" db:"notes"`
	FollowUp     bool       `json:"follow_up" db:"follow_up"`
	FollowUpDate *time.Time `json:"follow_up_date,omitempty" db:"follow_up_date"`

	CreatedBy string   `json:"created_by" db:"created_by"`
	Tags      []string `json:"tags,omitempty" db:"tags"`

	// ProviderSessionID is the telephony provider's call-session identifier.
	ProviderSessionID string `json:"provider_session_id,omitempty" db:"provider_session_id"`
}

type Outcome string

const (
	OutcomeConnected Outcome = "connected"
	OutcomeVoicemail Outcome = "voicemail"
	OutcomeNoAnswer  Outcome = "no-answer"
	OutcomeBusy      Outcome = "busy"
	OutcomeDeclined  Outcome = "declined"
	OutcomeFailed    Outcome = "failed"
	OutcomeInitiated Outcome = "initiated"
)

// ValidOutcome reports whether o is one of the known outcome values.
func ValidOutcome(o Outcome) bool {
	switch o {
	case OutcomeConnected, OutcomeVoicemail, OutcomeNoAnswer, OutcomeBusy,
		OutcomeDeclined, OutcomeFailed, OutcomeInitiated:
		return true
	default:
		return false
	}
}

// NewCallRecord carries the caller-supplied fields for Add; the store assigns ID.
type NewCallRecord struct {
	OrganizationID    string     `json:"organization_id"`
	ClientID          string     `json:"client_id"`
	ClientName        string     `json:"client_name"`
	PhoneNumber       string     `json:"phone_number"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	DurationSeconds   int        `json:"duration,omitempty"`
	Outcome           Outcome    `json:"outcome"`
	Notes             string     `json:"notes,omitempty"`
	FollowUp          bool       `json:"follow_up"`
	FollowUpDate      *time.Time `json:"follow_up_date,omitempty"`
	CreatedBy         string     `json:"created_by"`
	Tags              []string   `json:"tags,omitempty"`
	ProviderSessionID string     `json:"provider_session_id,omitempty"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Outcome           *Outcome    `json:"outcome,omitempty"`
	EndTime           *time.Time  `json:"end_time,omitempty"`
	DurationSeconds   *int        `json:"duration,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	FollowUp          *bool      `json:"follow_up,omitempty"`
	FollowUpDate      *time.Time `json:"follow_up_date,omitempty"`
	Tags              *[]string  `json:"tags,omitempty"`
	ProviderSessionID *string    `json:"provider_session_id,omitempty"`
}

// Apply merges the patch into a record copy and returns it.
func (p Patch) Apply(r CallRecord) CallRecord {
	if p.Outcome != nil {
		r.Outcome = *p.Outcome
	}
	if p.EndTime != nil {
		r.EndTime = p.EndTime
	}
	if p.DurationSeconds != nil {
		r.DurationSeconds = *p.DurationSeconds
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.FollowUp != nil {
		r.FollowUp = *p.FollowUp
	}
	if p.FollowUpDate != nil {
		r.FollowUpDate = p.FollowUpDate
	}
	if p.Tags != nil {
		r.Tags = *p.Tags
	}
	if p.ProviderSessionID != nil {
		r.ProviderSessionID = *p.ProviderSessionID
	}
	return r
}
