package models

import "time"

const (
	SessionStatusInProgress = "in_progress"
	SessionStatusCompleted  = "completed"
	SessionStatusAbandoned  = "abandoned"
)

const (
	QuestionTypeText   = "text"
	QuestionTypeEmail  = "email"
	QuestionTypeSingle = "single"
	QuestionTypeMulti  = "multi"
)

// QuizSession is one attempt at a funnel quiz. Sessions are created and
// completed by the quiz funnel; this service only reads them.
type QuizSession struct {
	ID            string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	QuizType      string     `gorm:"index;not null" json:"quiz_type"`
	Status        string     `gorm:"index;not null;default:'in_progress'" json:"status"`
	AffiliateCode *string    `gorm:"index" json:"affiliate_code,omitempty"` // referral code captured at entry, not the affiliate ID
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	Answers []QuizAnswer `json:"answers,omitempty" gorm:"foreignKey:SessionID"`
}

// QuizQuestion defines a prompt and its semantic type. Answer classification
// (name vs email) keys off Type and keyword matches on Prompt.
type QuizQuestion struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	QuizType  string    `gorm:"index;not null" json:"quiz_type"`
	Prompt    string    `gorm:"not null" json:"prompt"`
	Type      string    `gorm:"not null;default:'text'" json:"type"` // text | email | single | multi
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

type QuizAnswer struct {
	ID         string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SessionID  string    `gorm:"index;not null" json:"session_id"`
	QuestionID string    `gorm:"index;not null" json:"question_id"`
	Value      string    `json:"value"` // opaque scalar as entered by the visitor
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`

	Question QuizQuestion `json:"question" gorm:"foreignKey:QuestionID"`
}
