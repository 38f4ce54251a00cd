package models

import (
	"encoding/json"
	"time"
)

const ActionAppointmentOutcomeUpdated = "appointment_outcome_updated"

// AuditLog is an append-only record of admin/closer actions. Details is a
// JSON snapshot of the action's payload, stored as jsonb.
type AuditLog struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Action    string    `gorm:"index;not null" json:"action"`
	ActorID   string    `gorm:"index" json:"actor_id"`
	Details   string    `gorm:"type:jsonb" json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// OptionalString distinguishes "key present with null value" from "key
// absent" when decoding audit snapshots. Legacy rows written before a field
// existed leave Set false; rows that stored an explicit null have Set true
// and a nil Value.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// OutcomeAuditDetails is the decoded details payload of an
// appointment_outcome_updated entry.
type OutcomeAuditDetails struct {
	AppointmentID string         `json:"appointmentId"`
	Outcome       string         `json:"outcome"`
	RecordingLink OptionalString `json:"recordingLink"`
	Notes         OptionalString `json:"notes"`
}

// NewOutcomeAuditDetails builds the snapshot written by the outcome-update
// path. All keys are always present on new rows, null when unset.
func NewOutcomeAuditDetails(appointmentID, outcome string, recordingLink, notes *string) OutcomeAuditDetails {
	return OutcomeAuditDetails{
		AppointmentID: appointmentID,
		Outcome:       outcome,
		RecordingLink: OptionalString{Set: true, Value: recordingLink},
		Notes:         OptionalString{Set: true, Value: notes},
	}
}
