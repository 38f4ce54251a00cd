package models

import "time"

const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// Closer is a sales rep who owns appointments, notes and tasks for leads.
type Closer struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Note is free-form text a closer attaches to a lead, keyed by lead email.
type Note struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	LeadEmail string    `gorm:"index;not null" json:"lead_email"`
	CloserID  string    `gorm:"index;not null" json:"closer_id"`
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Task is a follow-up item for a lead. There is no explicit start timestamp;
// UpdatedAt stands in for it once the status reaches in_progress.
type Task struct {
	ID          string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	LeadEmail   string     `gorm:"index;not null" json:"lead_email"`
	CloserID    string     `gorm:"index;not null" json:"closer_id"`
	Title       string     `gorm:"not null" json:"title"`
	Status      string     `gorm:"index;not null;default:'pending'" json:"status"` // pending | in_progress | completed
	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}
