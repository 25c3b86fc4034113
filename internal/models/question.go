package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InputType declares how the learner produces an answer for a question.
type InputType string

const (
	InputSingleChoice   InputType = "single_choice"
	InputMultipleChoice InputType = "multiple_choice"
	InputFreeText       InputType = "free_text"
	InputLongText       InputType = "long_text"
	InputFillBlank      InputType = "fill_blank"
	InputAudio          InputType = "audio"
)

// ResponseType declares the shape of the persisted response payload.
type ResponseType string

const (
	ResponseSelection      ResponseType = "selection"
	ResponseText           ResponseType = "text"
	ResponseStructuredData ResponseType = "structured_data"
	ResponseAudioRecording ResponseType = "audio_recording"
)

// MediaRole tags how an attached media asset relates to its question.
type MediaRole string

const (
	MediaRolePrimary     MediaRole = "primary"
	MediaRoleInstruction MediaRole = "instruction"
	MediaRoleAudio       MediaRole = "audio"
	MediaRoleOption      MediaRole = "option"
)

type QuestionType struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	Name         string       `json:"name" gorm:"not null;size:100"`
	InputType    string       `json:"input_type" gorm:"not null;size:50" validate:"required"`
	ResponseType ResponseType `json:"response_type" gorm:"not null;size:50" validate:"required,response_type"`

	// Optional per-question-type limits, in seconds. Nil means untimed.
	TimeLimit *int `json:"time_limit" validate:"omitempty,min=5,max=3600"`
	PrepTime  *int `json:"prep_time" validate:"omitempty,min=0,max=600"`

	// UIComponent is an explicit renderer hint; it wins over InputType
	// when the dispatcher resolves a renderer.
	UIComponent *string `json:"ui_component" gorm:"size:100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Question struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	Title        string  `json:"title" gorm:"not null;size:300" validate:"required,min=1,max=300"`
	Content      string  `json:"content" gorm:"type:text" validate:"required"`
	Instructions *string `json:"instructions" gorm:"type:text" validate:"omitempty,max=2000"`

	DifficultyLevel  int  `json:"difficulty_level" gorm:"default:1" validate:"min=1,max=5"`
	ExpectedDuration *int `json:"expected_duration"` // seconds

	QuestionTypeID uint         `json:"question_type_id" gorm:"not null;index"`
	QuestionType   QuestionType `json:"question_type" gorm:"foreignKey:QuestionTypeID"`

	// BlanksConfig is present only for fill-in-blank questions.
	BlanksConfig datatypes.JSON `json:"blanks_config,omitempty" gorm:"type:jsonb"` // BlanksConfig

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Options []Option        `json:"options" gorm:"foreignKey:QuestionID"`
	Media   []QuestionMedia `json:"media" gorm:"foreignKey:QuestionID"`
}

type Option struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"not null;type:text" validate:"required"`

	// IsCorrect is never surfaced to the learner during capture.
	IsCorrect    bool  `json:"-" gorm:"default:false"`
	DisplayOrder int   `json:"display_order" gorm:"default:0"`
	MediaID      *uint `json:"media_id"`
}

// BlanksConfig describes the ordered blank slots of a fill-in-blank
// question. Content text carries positional {{id}} markers that the
// renderer substitutes with input slots.
type BlanksConfig struct {
	Blanks []BlankSlot `json:"blanks" validate:"required,min=1,dive"`
}

type BlankSlot struct {
	ID            string   `json:"id" validate:"required"`
	Answer        string   `json:"answer" validate:"required"`
	Variants      []string `json:"variants,omitempty"`
	CaseSensitive bool     `json:"case_sensitive"`
	MaxLength     int      `json:"max_length" validate:"omitempty,min=1,max=200"`
}

type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaAudio    MediaKind = "audio"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

type Media struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	Kind     MediaKind `json:"kind" gorm:"not null;size:20" validate:"required,media_kind"`
	MimeType string    `json:"mime_type" gorm:"not null;size:100"`
	ByteSize int64     `json:"byte_size"`
	Duration *float64  `json:"duration,omitempty"` // seconds, audio/video only
	URL      string    `json:"url" gorm:"size:2048"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuestionMedia binds a media asset to a question under a role.
type QuestionMedia struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	QuestionID uint      `json:"question_id" gorm:"not null;index"`
	MediaID    uint      `json:"media_id" gorm:"not null;index"`
	Role       MediaRole `json:"role" gorm:"not null;size:20" validate:"required,oneof=primary instruction audio option"`

	Media Media `json:"media" gorm:"foreignKey:MediaID"`
}

func (QuestionType) TableName() string  { return "question_types" }
func (Question) TableName() string      { return "questions" }
func (Option) TableName() string        { return "question_options" }
func (Media) TableName() string         { return "media" }
func (QuestionMedia) TableName() string { return "question_media" }
