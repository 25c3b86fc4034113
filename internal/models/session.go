package models

import "time"

// SessionQuestion binds a question to a position within a learner's
// session. Its lifecycle belongs to the session controller; the
// capture engine only updates the attempt/completion flags.
type SessionQuestion struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	SessionID  uint `json:"session_id" gorm:"not null;index"`
	QuestionID uint `json:"question_id" gorm:"not null;index"`
	Position   int  `json:"position" gorm:"not null"`

	Attempted   bool       `json:"attempted" gorm:"default:false"`
	Completed   bool       `json:"completed" gorm:"default:false"`
	AttemptedAt *time.Time `json:"attempted_at"`
	CompletedAt *time.Time `json:"completed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Question Question `json:"question" gorm:"foreignKey:QuestionID"`
}

func (SessionQuestion) TableName() string { return "session_questions" }
