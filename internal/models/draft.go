package models

import "time"

// AudioClip is a finalized recording: the encoded container bytes plus
// best-effort duration metadata. Duration may be refined after the
// clip is first reported.
type AudioClip struct {
	Data     []byte        `json:"-"`
	MimeType string        `json:"mime_type"`
	Duration time.Duration `json:"duration"`
}

// Empty reports whether the clip captured no audio. Empty clips are
// "no response", never a valid answer.
func (c AudioClip) Empty() bool {
	return len(c.Data) == 0
}

// ResponseDraft is the in-memory, per-question answer under
// construction. Exactly one of the payload fields is populated, and it
// must match the question type's ResponseType.
type ResponseDraft struct {
	QuestionID        uint         `json:"question_id"`
	SessionQuestionID uint         `json:"session_question_id"`
	ResponseType      ResponseType `json:"response_type"`

	SelectedOptionIDs []uint            `json:"selected_option_ids,omitempty"`
	Text              string            `json:"text,omitempty"`
	BlankAnswers      map[string]string `json:"blank_answers,omitempty"`
	Audio             *AudioClip        `json:"audio,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Empty reports whether the draft carries any answer content at all.
func (d *ResponseDraft) Empty() bool {
	switch d.ResponseType {
	case ResponseSelection:
		return len(d.SelectedOptionIDs) == 0
	case ResponseText:
		return d.Text == ""
	case ResponseStructuredData:
		return len(d.BlankAnswers) == 0
	case ResponseAudioRecording:
		return d.Audio == nil || d.Audio.Empty()
	default:
		return true
	}
}

// Clone returns a deep copy safe to hand to the persistence layer
// while the renderer keeps mutating the original.
func (d *ResponseDraft) Clone() *ResponseDraft {
	out := *d
	if d.SelectedOptionIDs != nil {
		out.SelectedOptionIDs = append([]uint(nil), d.SelectedOptionIDs...)
	}
	if d.BlankAnswers != nil {
		out.BlankAnswers = make(map[string]string, len(d.BlankAnswers))
		for k, v := range d.BlankAnswers {
			out.BlankAnswers[k] = v
		}
	}
	if d.Audio != nil {
		clip := *d.Audio
		clip.Data = append([]byte(nil), d.Audio.Data...)
		out.Audio = &clip
	}
	return &out
}

// ResponseEnvelope is the payload handed to the external Response API.
// For audio recordings the envelope carries the finalized clip bytes;
// upload and storage belong to the external layer.
type ResponseEnvelope struct {
	QuestionID        uint         `json:"question_id"`
	SessionQuestionID uint         `json:"session_question_id"`
	ResponseType      ResponseType `json:"response_type"`

	SelectedOptionIDs []uint            `json:"selected_option_ids,omitempty"`
	Text              string            `json:"text,omitempty"`
	BlankAnswers      map[string]string `json:"blank_answers,omitempty"`
	Audio             *AudioClip        `json:"audio,omitempty"`
}

// Envelope materializes the draft into a persistence envelope.
func (d *ResponseDraft) Envelope() *ResponseEnvelope {
	c := d.Clone()
	return &ResponseEnvelope{
		QuestionID:        c.QuestionID,
		SessionQuestionID: c.SessionQuestionID,
		ResponseType:      c.ResponseType,
		SelectedOptionIDs: c.SelectedOptionIDs,
		Text:              c.Text,
		BlankAnswers:      c.BlankAnswers,
		Audio:             c.Audio,
	}
}
