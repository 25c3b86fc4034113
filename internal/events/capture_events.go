package events

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

// EventType represents different types of capture lifecycle events
type EventType string

const (
	// Question lifecycle events
	EventQuestionActivated EventType = "question.activated"
	EventQuestionAbandoned EventType = "question.abandoned"

	// Recording events
	EventRecordingStarted   EventType = "recording.started"
	EventRecordingFinalized EventType = "recording.finalized"

	// Response events
	EventDraftFlushed      EventType = "draft.flushed"
	EventResponseSubmitted EventType = "response.submitted"
)

// CaptureEvent is the base event structure for all capture lifecycle events
type CaptureEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Question lifecycle event payloads

type QuestionActivatedEvent struct {
	QuestionID        uint      `json:"question_id"`
	SessionQuestionID uint      `json:"session_question_id"`
	RendererKind      string    `json:"renderer_kind"`
	ActivatedAt       time.Time `json:"activated_at"`
}

type QuestionAbandonedEvent struct {
	QuestionID        uint      `json:"question_id"`
	SessionQuestionID uint      `json:"session_question_id"`
	AbandonedAt       time.Time `json:"abandoned_at"`
}

// Recording event payloads

type RecordingStartedEvent struct {
	QuestionID        uint      `json:"question_id"`
	SessionQuestionID uint      `json:"session_question_id"`
	StartedAt         time.Time `json:"started_at"`
	TimeLimit         *int      `json:"time_limit,omitempty"` // seconds
}

type RecordingFinalizedEvent struct {
	QuestionID        uint      `json:"question_id"`
	SessionQuestionID uint      `json:"session_question_id"`
	FinalizedAt       time.Time `json:"finalized_at"`
	DurationSeconds   float64   `json:"duration_seconds"`
	SizeBytes         int       `json:"size_bytes"`
	Empty             bool      `json:"empty"`
}

// Response event payloads

type DraftFlushedEvent struct {
	QuestionID        uint      `json:"question_id"`
	SessionQuestionID uint      `json:"session_question_id"`
	ResponseType      string    `json:"response_type"`
	FlushedAt         time.Time `json:"flushed_at"`
}

type ResponseSubmittedEvent struct {
	QuestionID        uint      `json:"question_id"`
	SessionQuestionID uint      `json:"session_question_id"`
	ResponseType      string    `json:"response_type"`
	SubmittedAt       time.Time `json:"submitted_at"`
	HasAudio          bool      `json:"has_audio"`
}

// Event factory functions

func NewQuestionActivatedEvent(questionID, sessionQuestionID uint, rendererKind string) *CaptureEvent {
	return &CaptureEvent{
		ID:        GenerateEventID(),
		Type:      EventQuestionActivated,
		Timestamp: time.Now(),
		Source:    "capture-service",
		Version:   "1.0",
		Data: QuestionActivatedEvent{
			QuestionID:        questionID,
			SessionQuestionID: sessionQuestionID,
			RendererKind:      rendererKind,
			ActivatedAt:       time.Now(),
		},
	}
}

func NewQuestionAbandonedEvent(questionID, sessionQuestionID uint) *CaptureEvent {
	return &CaptureEvent{
		ID:        GenerateEventID(),
		Type:      EventQuestionAbandoned,
		Timestamp: time.Now(),
		Source:    "capture-service",
		Version:   "1.0",
		Data: QuestionAbandonedEvent{
			QuestionID:        questionID,
			SessionQuestionID: sessionQuestionID,
			AbandonedAt:       time.Now(),
		},
	}
}

func NewRecordingStartedEvent(questionID, sessionQuestionID uint, timeLimit *int) *CaptureEvent {
	return &CaptureEvent{
		ID:        GenerateEventID(),
		Type:      EventRecordingStarted,
		Timestamp: time.Now(),
		Source:    "capture-service",
		Version:   "1.0",
		Data: RecordingStartedEvent{
			QuestionID:        questionID,
			SessionQuestionID: sessionQuestionID,
			StartedAt:         time.Now(),
			TimeLimit:         timeLimit,
		},
	}
}

func NewRecordingFinalizedEvent(questionID, sessionQuestionID uint, durationSec float64, sizeBytes int, empty bool) *CaptureEvent {
	return &CaptureEvent{
		ID:        GenerateEventID(),
		Type:      EventRecordingFinalized,
		Timestamp: time.Now(),
		Source:    "capture-service",
		Version:   "1.0",
		Data: RecordingFinalizedEvent{
			QuestionID:        questionID,
			SessionQuestionID: sessionQuestionID,
			FinalizedAt:       time.Now(),
			DurationSeconds:   durationSec,
			SizeBytes:         sizeBytes,
			Empty:             empty,
		},
	}
}

func NewDraftFlushedEvent(questionID, sessionQuestionID uint, responseType string) *CaptureEvent {
	return &CaptureEvent{
		ID:        GenerateEventID(),
		Type:      EventDraftFlushed,
		Timestamp: time.Now(),
		Source:    "capture-service",
		Version:   "1.0",
		Data: DraftFlushedEvent{
			QuestionID:        questionID,
			SessionQuestionID: sessionQuestionID,
			ResponseType:      responseType,
			FlushedAt:         time.Now(),
		},
	}
}

func NewResponseSubmittedEvent(questionID, sessionQuestionID uint, responseType string, hasAudio bool) *CaptureEvent {
	return &CaptureEvent{
		ID:        GenerateEventID(),
		Type:      EventResponseSubmitted,
		Timestamp: time.Now(),
		Source:    "capture-service",
		Version:   "1.0",
		Data: ResponseSubmittedEvent{
			QuestionID:        questionID,
			SessionQuestionID: sessionQuestionID,
			ResponseType:      responseType,
			SubmittedAt:       time.Now(),
			HasAudio:          hasAudio,
		},
	}
}

// GenerateEventID produces a unique message identifier
func GenerateEventID() string {
	return watermill.NewUUID()
}
