// Package dispatch resolves a question's declared input and response
// type to a concrete renderer kind. The string-typed metadata is
// parsed once here; everything downstream works with the closed Kind
// set.
package dispatch

import (
	"strings"

	"github.com/prepstation/capture-service/internal/models"
)

// Kind is the closed set of renderer families.
type Kind string

const (
	KindSingleChoice Kind = "single_choice"
	KindMultiChoice  Kind = "multi_choice"
	KindText         Kind = "text"
	KindLongText     Kind = "long_text"
	KindBlanks       Kind = "blanks"
	KindSpeaking     Kind = "speaking"
	// KindFallback captures best-effort responses for unrecognized
	// question types. Never an error.
	KindFallback Kind = "fallback"
)

// hint values a question type may declare to pin its renderer
// explicitly. Hints win over input_type.
var hintKinds = map[string]Kind{
	"single_choice_renderer": KindSingleChoice,
	"multi_choice_renderer":  KindMultiChoice,
	"text_renderer":          KindText,
	"long_text_renderer":     KindLongText,
	"blanks_renderer":        KindBlanks,
	"speaking_renderer":      KindSpeaking,
}

var inputKinds = map[models.InputType]Kind{
	models.InputSingleChoice:   KindSingleChoice,
	models.InputMultipleChoice: KindMultiChoice,
	models.InputFreeText:       KindText,
	models.InputLongText:       KindLongText,
	models.InputFillBlank:      KindBlanks,
	models.InputAudio:          KindSpeaking,
}

// ParseKind maps a question type to its renderer kind: explicit hint
// first, then input_type, else Fallback.
func ParseKind(qt models.QuestionType) Kind {
	if qt.UIComponent != nil {
		hint := strings.ToLower(strings.TrimSpace(*qt.UIComponent))
		if k, ok := hintKinds[hint]; ok {
			return k
		}
	}

	input := models.InputType(strings.ToLower(strings.TrimSpace(qt.InputType)))
	if k, ok := inputKinds[input]; ok {
		return k
	}
	return KindFallback
}

// ResponseTypeFor returns the payload shape a kind captures. Fallback
// accepts a best-effort text answer.
func ResponseTypeFor(k Kind) models.ResponseType {
	switch k {
	case KindSingleChoice, KindMultiChoice:
		return models.ResponseSelection
	case KindText, KindLongText:
		return models.ResponseText
	case KindBlanks:
		return models.ResponseStructuredData
	case KindSpeaking:
		return models.ResponseAudioRecording
	default:
		return models.ResponseText
	}
}
