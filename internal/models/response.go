package models

import (
	"time"

	"gorm.io/datatypes"
)

// StoredResponse is the durable row behind the Response API. One row
// per session question; autosave and submit both upsert it.
type StoredResponse struct {
	ID                uint         `json:"id" gorm:"primaryKey"`
	QuestionID        uint         `json:"question_id" gorm:"not null;index"`
	SessionQuestionID uint         `json:"session_question_id" gorm:"not null;uniqueIndex"`
	ResponseType      ResponseType `json:"response_type" gorm:"size:50;not null"`

	// Payload holds the non-audio answer content as JSON: selected
	// option ids, text, or blank answers.
	Payload datatypes.JSON `json:"payload" gorm:"type:jsonb"`

	// AudioData carries the finalized clip container bytes.
	AudioData     []byte  `json:"-" gorm:"type:bytea"`
	AudioMimeType string  `json:"audio_mime_type,omitempty" gorm:"size:100"`
	AudioDuration float64 `json:"audio_duration,omitempty"`

	Submitted   bool       `json:"submitted" gorm:"default:false"`
	SubmittedAt *time.Time `json:"submitted_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StoredResponse) TableName() string { return "responses" }
