package renderers

import (
	"github.com/prepstation/capture-service/internal/dispatch"
	"github.com/prepstation/capture-service/internal/models"
	"github.com/prepstation/capture-service/internal/phase"
)

// View is the render model handed to the client for the active
// question. Only the fields relevant to the renderer kind are set.
type View struct {
	Kind         dispatch.Kind `json:"kind"`
	QuestionID   uint          `json:"question_id"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	Instructions string        `json:"instructions,omitempty"`

	Options  []OptionView     `json:"options,omitempty"`
	Segments []ContentSegment `json:"segments,omitempty"`
	Media    []MediaView      `json:"media,omitempty"`

	Recording *RecordingView `json:"recording,omitempty"`

	// Fallback-only: a visible limitation notice plus, in developer
	// mode, the raw question-type metadata.
	Notice      string         `json:"notice,omitempty"`
	Diagnostics map[string]any `json:"diagnostics,omitempty"`
}

type OptionView struct {
	ID       uint   `json:"id"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

// ContentSegment is one run of a fill-in-blank question's content: a
// literal text run, or an input slot bound to one blank.
type ContentSegment struct {
	Text    string `json:"text,omitempty"`
	BlankID string `json:"blank_id,omitempty"`
	// Value is the learner's current answer for the slot.
	Value     string `json:"value,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

type MediaView struct {
	MediaID     uint             `json:"media_id"`
	Role        models.MediaRole `json:"role"`
	Kind        models.MediaKind `json:"kind"`
	URL         string           `json:"url,omitempty"`
	Placeholder bool             `json:"placeholder,omitempty"`
	// LoadFailed marks a resolvable asset that failed to load; the
	// client offers retry/download instead of blocking the response
	// area.
	LoadFailed bool `json:"load_failed,omitempty"`
}

type RecordingView struct {
	Phase            phase.State `json:"phase"`
	PrepRemaining    int         `json:"prep_remaining,omitempty"`
	SecondsRemaining int         `json:"seconds_remaining,omitempty"`
	SecondsElapsed   int         `json:"seconds_elapsed,omitempty"`
	HasClip          bool        `json:"has_clip"`
	ClipDurationSec  float64     `json:"clip_duration_sec,omitempty"`
	// CaptureError carries a user-facing device failure message;
	// recoverable, the phase does not advance.
	CaptureError string `json:"capture_error,omitempty"`
}

func (b *base) baseView(kind dispatch.Kind) *View {
	v := &View{
		Kind:       kind,
		QuestionID: b.question.ID,
		Title:      b.question.Title,
		Content:    b.question.Content,
	}
	if b.question.Instructions != nil {
		v.Instructions = *b.question.Instructions
	}
	return v
}
