package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"coaching-crm-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	RoleAdmin  = "admin"
	RoleCloser = "closer"
)

// AccessScope is the caller's capability, passed explicitly rather than
// inferred from ambient request state. Closers only see sessions whose lead
// email is linked to them via an appointment or task.
type AccessScope struct {
	Role     string
	CloserID string
}

const (
	EventQuizCompleted  = "quiz_completed"
	EventCallBooked     = "call_booked"
	EventTaskCreated    = "task_created"
	EventTaskStarted    = "task_started"
	EventNoteAdded      = "note_added"
	EventOutcomeMarked  = "outcome_marked"
	EventOutcomeUpdated = "outcome_updated"
	EventTaskCompleted  = "task_completed"
	EventDealClosed     = "deal_closed"
)

// Tie-break order for events sharing an exact timestamp.
var eventPriority = map[string]int{
	EventQuizCompleted:  0,
	EventCallBooked:     1,
	EventTaskCreated:    2,
	EventTaskStarted:    3,
	EventNoteAdded:      4,
	EventOutcomeMarked:  5,
	EventOutcomeUpdated: 6,
	EventTaskCompleted:  7,
	EventDealClosed:     8,
}

type TimelineEvent struct {
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Title         string    `json:"title,omitempty"`
	Outcome       string    `json:"outcome,omitempty"`
	RecordingLink *string   `json:"recording_link,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	TaskStatus    string    `json:"task_status,omitempty"`
}

var (
	ErrSessionNotFound   = errors.New("quiz session not found")
	ErrTimelineForbidden = errors.New("closer is not linked to this lead")
)

type TimelineService struct {
	DB *gorm.DB
}

func NewTimelineService(db *gorm.DB) *TimelineService {
	return &TimelineService{DB: db}
}

func sortTimeline(events []TimelineEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return eventPriority[events[i].Type] < eventPriority[events[j].Type]
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

// resolveSessionEmail prefers a classified email answer; legacy sessions
// without one fall back to any answer value containing '@'.
func resolveSessionEmail(session models.QuizSession) string {
	for _, a := range session.Answers {
		if a.Value != "" && isEmailAnswer(a) {
			return a.Value
		}
	}
	for _, a := range session.Answers {
		if strings.Contains(a.Value, "@") {
			return a.Value
		}
	}
	return ""
}

func snapshotRecordingLink(appt *models.Appointment, d models.OutcomeAuditDetails) *string {
	if d.RecordingLink.Set {
		return d.RecordingLink.Value
	}
	// Key absent: legacy audit row predating snapshots, use the current
	// appointment column.
	return appt.RecordingLinkForOutcome(d.Outcome)
}

func snapshotNotes(d models.OutcomeAuditDetails) *string {
	if d.Notes.Set {
		return d.Notes.Value
	}
	return nil
}

// buildOutcomeEvents turns the appointment's audit history into
// outcome_marked/outcome_updated events plus an optional deal_closed. The
// first chronological entry is "marked" and the rest "updated"; converted
// entries are suppressed from the stream because a won deal is represented
// solely by deal_closed. saleAt, when known, is the sale conversion's
// CreatedAt and wins over the appointment's UpdatedAt as the closing date.
func buildOutcomeEvents(appt *models.Appointment, entries []models.AuditLog, saleAt *time.Time) []TimelineEvent {
	events := []TimelineEvent{}
	first := true
	var lastConverted *models.OutcomeAuditDetails

	for _, entry := range entries {
		var d models.OutcomeAuditDetails
		if err := json.Unmarshal([]byte(entry.Details), &d); err != nil {
			continue
		}
		if d.AppointmentID != appt.ID {
			continue
		}

		isFirst := first
		first = false

		if d.Outcome == models.OutcomeConverted {
			snapshot := d
			lastConverted = &snapshot
			continue
		}

		evType := EventOutcomeUpdated
		if isFirst {
			evType = EventOutcomeMarked
		}
		events = append(events, TimelineEvent{
			Type:          evType,
			Timestamp:     entry.CreatedAt,
			Outcome:       d.Outcome,
			RecordingLink: snapshotRecordingLink(appt, d),
			Notes:         snapshotNotes(d),
		})
	}

	if appt.Outcome == models.OutcomeConverted {
		ts := appt.UpdatedAt
		if saleAt != nil {
			ts = *saleAt
		}
		ev := TimelineEvent{Type: EventDealClosed, Timestamp: ts, Outcome: models.OutcomeConverted}
		if lastConverted != nil && lastConverted.RecordingLink.Set {
			ev.RecordingLink = lastConverted.RecordingLink.Value
		} else {
			ev.RecordingLink = appt.RecordingLinkForOutcome(models.OutcomeConverted)
		}
		if lastConverted != nil {
			ev.Notes = snapshotNotes(*lastConverted)
		}
		events = append(events, ev)
	}

	return events
}

func buildNoteEvents(notes []models.Note) []TimelineEvent {
	events := make([]TimelineEvent, 0, len(notes))
	for _, n := range notes {
		body := n.Body
		events = append(events, TimelineEvent{Type: EventNoteAdded, Timestamp: n.CreatedAt, Notes: &body})
	}
	return events
}

// buildTaskEvents expands each task into up to three events: task_created
// always, task_started once the status has left pending (UpdatedAt
// approximates the start time; no start column exists), task_completed when
// a completion timestamp is set.
func buildTaskEvents(tasks []models.Task) []TimelineEvent {
	events := make([]TimelineEvent, 0, len(tasks))
	for _, t := range tasks {
		events = append(events, TimelineEvent{Type: EventTaskCreated, Timestamp: t.CreatedAt, Title: t.Title, TaskStatus: t.Status})
		if t.Status == models.TaskStatusInProgress || t.Status == models.TaskStatusCompleted {
			events = append(events, TimelineEvent{Type: EventTaskStarted, Timestamp: t.UpdatedAt, Title: t.Title, TaskStatus: t.Status})
		}
		if t.CompletedAt != nil {
			events = append(events, TimelineEvent{Type: EventTaskCompleted, Timestamp: *t.CompletedAt, Title: t.Title, TaskStatus: t.Status})
		}
	}
	return events
}

func (s *TimelineService) closerLinkedToLead(closerID, email string) (bool, error) {
	if closerID == "" || email == "" {
		return false, nil
	}
	var n int64
	if err := s.DB.Model(&models.Appointment{}).
		Where("customer_email = ? AND closer_id = ?", email, closerID).
		Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := s.DB.Model(&models.Task{}).
		Where("lead_email = ? AND closer_id = ?", email, closerID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ComposeTimeline assembles one lead's chronological history. Read-only: it
// never mutates state. A session without a resolvable email still yields its
// email-independent events.
func (s *TimelineService) ComposeTimeline(sessionID string, scope AccessScope) ([]TimelineEvent, error) {
	var session models.QuizSession
	if err := s.DB.Preload("Answers.Question").First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, err
	}

	email := resolveSessionEmail(session)

	if scope.Role != RoleAdmin {
		linked, err := s.closerLinkedToLead(scope.CloserID, email)
		if err != nil {
			return nil, err
		}
		if !linked {
			return nil, ErrTimelineForbidden
		}
	}

	events := []TimelineEvent{}
	if session.CompletedAt != nil {
		events = append(events, TimelineEvent{
			Type:      EventQuizCompleted,
			Timestamp: *session.CompletedAt,
			Title:     session.QuizType,
		})
	}

	if email == "" {
		sortTimeline(events)
		return events, nil
	}

	var appt models.Appointment
	apptErr := s.DB.Where("customer_email = ?", email).Order("created_at DESC").First(&appt).Error
	if apptErr != nil && !errors.Is(apptErr, gorm.ErrRecordNotFound) {
		return nil, apptErr
	}
	if apptErr == nil {
		events = append(events, TimelineEvent{
			Type:      EventCallBooked,
			Timestamp: appt.CreatedAt,
			Title:     "Call scheduled for " + appt.ScheduledAt.UTC().Format(time.RFC3339),
		})

		var entries []models.AuditLog
		if err := s.DB.
			Where("action = ? AND details->>'appointmentId' = ?", models.ActionAppointmentOutcomeUpdated, appt.ID).
			Order("created_at ASC").
			Find(&entries).Error; err != nil {
			return nil, err
		}

		var saleAt *time.Time
		if appt.Outcome == models.OutcomeConverted {
			var sale models.AffiliateConversion
			err := s.DB.
				Where("conversion_type = ? AND customer_email = ?", models.ConversionTypeSale, email).
				Order("created_at ASC").
				First(&sale).Error
			if err == nil {
				saleAt = &sale.CreatedAt
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
		}

		events = append(events, buildOutcomeEvents(&appt, entries, saleAt)...)
	}

	var notes []models.Note
	if err := s.DB.Where("lead_email = ?", email).Find(&notes).Error; err != nil {
		return nil, err
	}
	events = append(events, buildNoteEvents(notes)...)

	var tasks []models.Task
	if err := s.DB.Where("lead_email = ?", email).Find(&tasks).Error; err != nil {
		return nil, err
	}
	events = append(events, buildTaskEvents(tasks)...)

	sortTimeline(events)
	return events, nil
}

// ScopeFromCtx builds the caller's AccessScope from the gateway-provided
// user context.
func ScopeFromCtx(c *fiber.Ctx) AccessScope {
	scope := AccessScope{Role: RoleCloser}
	if userID, ok := c.Locals("user_id").(string); ok {
		scope.CloserID = userID
	}
	if roles, ok := c.Locals("user_roles").([]string); ok {
		for _, r := range roles {
			if r == RoleAdmin {
				scope.Role = RoleAdmin
			}
		}
	}
	return scope
}

// GetTimelineEndpoint handles GET /sessions/:id/timeline.
func (s *TimelineService) GetTimelineEndpoint(c *fiber.Ctx) error {
	events, err := s.ComposeTimeline(c.Params("id"), ScopeFromCtx(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
		case errors.Is(err, ErrTimelineForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not authorized for this lead"})
		default:
			log.Printf("DB Error composing timeline: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load timeline"})
		}
	}
	return c.JSON(fiber.Map{"events": events})
}
