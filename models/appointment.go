package models

import "time"

const (
	OutcomePending       = "pending"
	OutcomeConverted     = "converted"
	OutcomeNotInterested = "not_interested"
	OutcomeNeedsFollowUp = "needs_follow_up"
	OutcomeNoShow        = "no_show"
)

// Appointment mirrors a booked call from the booking (Calendly proxy)
// service. It is linked to a quiz session by ID when the funnel carried the
// session through booking, with the customer email as the fallback match.
type Appointment struct {
	ID              string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CalendlyEventID string  `gorm:"uniqueIndex;not null" json:"calendly_event_id"`
	QuizSessionID   *string `gorm:"index" json:"quiz_session_id,omitempty"`
	CloserID        *string `gorm:"index" json:"closer_id,omitempty"`
	CustomerName    string  `json:"customer_name"`
	CustomerEmail   string  `gorm:"index" json:"customer_email"`

	ScheduledAt  time.Time `json:"scheduled_at"`
	Outcome      string    `gorm:"index;not null;default:'pending'" json:"outcome"`
	OutcomeNotes string    `json:"outcome_notes,omitempty"`

	// One recording link column per outcome; audit-log snapshots take
	// precedence over these when composing a timeline.
	ConvertedRecordingLink     *string `json:"converted_recording_link,omitempty"`
	FollowUpRecordingLink      *string `json:"follow_up_recording_link,omitempty"`
	NotInterestedRecordingLink *string `json:"not_interested_recording_link,omitempty"`
	NoShowRecordingLink        *string `json:"no_show_recording_link,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// RecordingLinkForOutcome returns the stored recording link column for the
// given outcome, or nil for outcomes that carry none.
func (a *Appointment) RecordingLinkForOutcome(outcome string) *string {
	switch outcome {
	case OutcomeConverted:
		return a.ConvertedRecordingLink
	case OutcomeNeedsFollowUp:
		return a.FollowUpRecordingLink
	case OutcomeNotInterested:
		return a.NotInterestedRecordingLink
	case OutcomeNoShow:
		return a.NoShowRecordingLink
	}
	return nil
}

// SetRecordingLinkForOutcome writes the per-outcome recording link column.
func (a *Appointment) SetRecordingLinkForOutcome(outcome string, link *string) {
	switch outcome {
	case OutcomeConverted:
		a.ConvertedRecordingLink = link
	case OutcomeNeedsFollowUp:
		a.FollowUpRecordingLink = link
	case OutcomeNotInterested:
		a.NotInterestedRecordingLink = link
	case OutcomeNoShow:
		a.NoShowRecordingLink = link
	}
}
