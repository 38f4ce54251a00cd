package services

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"coaching-crm-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CloserService struct {
	DB *gorm.DB
}

func NewCloserService(db *gorm.DB) *CloserService {
	return &CloserService{DB: db}
}

func ctxUserID(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(string); ok {
		return id
	}
	return ""
}

func ctxHasRole(c *fiber.Ctx, role string) bool {
	roles, ok := c.Locals("user_roles").([]string)
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

var validOutcomes = map[string]bool{
	models.OutcomeConverted:     true,
	models.OutcomeNotInterested: true,
	models.OutcomeNeedsFollowUp: true,
	models.OutcomeNoShow:        true,
}

// CreateCloser registers a sales rep (Admin only).
func (s *CloserService) CreateCloser(c *fiber.Ctx) error {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name and email are required"})
	}

	closer := &models.Closer{ID: uuid.NewString(), Name: req.Name, Email: req.Email, IsActive: true}
	if err := s.DB.Create(closer).Error; err != nil {
		log.Printf("DB Error creating closer: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create closer"})
	}
	return c.Status(fiber.StatusCreated).JSON(closer)
}

// GetClosers lists sales reps (Admin only).
func (s *CloserService) GetClosers(c *fiber.Ctx) error {
	var closers []models.Closer
	if err := s.DB.Order("created_at ASC").Find(&closers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(closers)
}

// GetMyAppointments lists the calling closer's appointments. Admins may pass
// ?closer_id= to view another rep's book.
func (s *CloserService) GetMyAppointments(c *fiber.Ctx) error {
	closerID := ctxUserID(c)
	if ctxHasRole(c, RoleAdmin) {
		if override := c.Query("closer_id"); override != "" {
			closerID = override
		}
	}

	var appointments []models.Appointment
	if err := s.DB.Where("closer_id = ?", closerID).
		Order("scheduled_at ASC").
		Find(&appointments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(appointments)
}

// UpdateAppointmentOutcome marks or re-marks a call's outcome and appends an
// audit entry with a full snapshot of what was set. The snapshot always
// carries the recordingLink and notes keys (null when unset) so later
// timeline reads can tell "cleared" apart from "legacy row".
func (s *CloserService) UpdateAppointmentOutcome(c *fiber.Ctx) error {
	id := c.Params("id")

	var req struct {
		Outcome       string  `json:"outcome"`
		RecordingLink *string `json:"recording_link"`
		Notes         *string `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if !validOutcomes[req.Outcome] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid outcome"})
	}

	var appt models.Appointment
	if err := s.DB.First(&appt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Appointment not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	actorID := ctxUserID(c)
	if !ctxHasRole(c, RoleAdmin) {
		if appt.CloserID == nil || *appt.CloserID != actorID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not your appointment"})
		}
	}

	appt.Outcome = req.Outcome
	appt.SetRecordingLinkForOutcome(req.Outcome, req.RecordingLink)
	if req.Notes != nil {
		appt.OutcomeNotes = *req.Notes
	}

	details, err := json.Marshal(models.NewOutcomeAuditDetails(appt.ID, req.Outcome, req.RecordingLink, req.Notes))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to encode audit details"})
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&appt).Error; err != nil {
			return err
		}
		return tx.Create(&models.AuditLog{
			ID:        uuid.NewString(),
			Action:    models.ActionAppointmentOutcomeUpdated,
			ActorID:   actorID,
			Details:   string(details),
			CreatedAt: time.Now(),
		}).Error
	})
	if err != nil {
		log.Printf("DB Error updating appointment outcome: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update outcome"})
	}

	return c.JSON(appt)
}

// CreateNote attaches a note to a lead.
func (s *CloserService) CreateNote(c *fiber.Ctx) error {
	var req struct {
		LeadEmail string `json:"lead_email"`
		Body      string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.LeadEmail == "" || req.Body == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "lead_email and body are required"})
	}

	note := &models.Note{
		ID:        uuid.NewString(),
		LeadEmail: req.LeadEmail,
		CloserID:  ctxUserID(c),
		Body:      req.Body,
	}
	if err := s.DB.Create(note).Error; err != nil {
		log.Printf("DB Error creating note: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create note"})
	}
	return c.Status(fiber.StatusCreated).JSON(note)
}

// GetNotes lists notes for a lead email.
func (s *CloserService) GetNotes(c *fiber.Ctx) error {
	email := c.Query("lead_email")
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "lead_email is required"})
	}
	var notes []models.Note
	if err := s.DB.Where("lead_email = ?", email).Order("created_at ASC").Find(&notes).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(notes)
}

// CreateTask creates a follow-up task for a lead, owned by the caller.
func (s *CloserService) CreateTask(c *fiber.Ctx) error {
	var req struct {
		LeadEmail string     `json:"lead_email"`
		Title     string     `json:"title"`
		DueAt     *time.Time `json:"due_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.LeadEmail == "" || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "lead_email and title are required"})
	}

	task := &models.Task{
		ID:        uuid.NewString(),
		LeadEmail: req.LeadEmail,
		CloserID:  ctxUserID(c),
		Title:     req.Title,
		Status:    models.TaskStatusPending,
		DueAt:     req.DueAt,
	}
	if err := s.DB.Create(task).Error; err != nil {
		log.Printf("DB Error creating task: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create task"})
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// GetMyTasks lists the calling closer's tasks.
func (s *CloserService) GetMyTasks(c *fiber.Ctx) error {
	var tasks []models.Task
	if err := s.DB.Where("closer_id = ?", ctxUserID(c)).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(tasks)
}

// UpdateTaskStatus moves a task through pending → in_progress → completed.
// CompletedAt is stamped once, when the task first reaches completed.
func (s *CloserService) UpdateTaskStatus(c *fiber.Ctx) error {
	id := c.Params("id")

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Status != models.TaskStatusPending &&
		req.Status != models.TaskStatusInProgress &&
		req.Status != models.TaskStatusCompleted {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status"})
	}

	var task models.Task
	if err := s.DB.First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if !ctxHasRole(c, RoleAdmin) && task.CloserID != ctxUserID(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not your task"})
	}

	task.Status = req.Status
	if req.Status == models.TaskStatusCompleted && task.CompletedAt == nil {
		now := time.Now()
		task.CompletedAt = &now
	}

	if err := s.DB.Save(&task).Error; err != nil {
		log.Printf("DB Error updating task: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update task"})
	}
	return c.JSON(task)
}
