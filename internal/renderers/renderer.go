// Package renderers maps each question to a concrete response-capture
// surface. A renderer owns the draft store for its question and, for
// speaking questions, the phase machine and audio capture engine.
package renderers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prepstation/capture-service/internal/audio"
	"github.com/prepstation/capture-service/internal/dispatch"
	"github.com/prepstation/capture-service/internal/draft"
	"github.com/prepstation/capture-service/internal/media"
	"github.com/prepstation/capture-service/internal/models"
	"github.com/prepstation/capture-service/internal/playback"
)

var (
	ErrUnsupportedInput = errors.New("input event not supported by this renderer")
	ErrNotActive        = errors.New("renderer is not active")
)

// Action identifies one learner input event.
type Action string

const (
	ActionSelect        Action = "select"
	ActionToggle        Action = "toggle"
	ActionText          Action = "text"
	ActionBlank         Action = "blank"
	ActionStopRecording Action = "stop_recording"
	ActionReRecord      Action = "re_record"
	ActionPlay          Action = "play"
	ActionPause         Action = "pause"
	ActionSeek          Action = "seek"
)

// InputEvent carries one edit from the client. Fields beyond Action
// are read per-action.
type InputEvent struct {
	Action   Action  `json:"action" validate:"required,input_action"`
	OptionID uint    `json:"option_id,omitempty"`
	Text     string  `json:"text,omitempty"`
	BlankID  string  `json:"blank_id,omitempty"`
	SeekSec  float64 `json:"seek_sec,omitempty" validate:"seek_position"`
}

// Renderer is one active response-capture surface. Exactly one exists
// per active question; Teardown releases every timer and media
// resource it holds.
type Renderer interface {
	Kind() dispatch.Kind
	Activate(ctx context.Context) error
	Apply(ctx context.Context, ev InputEvent) error
	View(ctx context.Context) *View
	Draft() *models.ResponseDraft
	// Flush persists the draft synchronously (submit path).
	Flush(ctx context.Context) error
	// Drop cancels pending persistence (abandon path).
	Drop()
	Teardown()
}

// Deps bundles the collaborators a renderer may need. Zero-value
// optional fields are tolerated by renderers that do not use them.
type Deps struct {
	Persister draft.Persister
	Resolver  media.Resolver
	NewSource audio.SourceFactory
	Sink      playback.Sink
	Fetch     playback.Fetcher
	Logger    *slog.Logger

	// QuietPeriod overrides the autosave debounce; zero uses the
	// default.
	QuietPeriod time.Duration
	// TickInterval overrides the one-second timer tick; zero uses
	// one second.
	TickInterval time.Duration
	// Diagnostics exposes raw question-type metadata on the fallback
	// view. Developer mode only.
	Diagnostics bool

	// Lifecycle hooks, invoked by speaking renderers. Nil hooks are
	// skipped.
	OnRecordingStarted   func()
	OnRecordingFinalized func(durationSec float64, sizeBytes int, empty bool)
}

// New dispatches a question to its renderer. Unrecognized types yield
// the fallback renderer, never an error.
func New(q models.Question, sessionQuestionID uint, deps Deps) Renderer {
	kind := dispatch.ParseKind(q.QuestionType)
	base := newBase(kind, q, sessionQuestionID, deps)

	switch kind {
	case dispatch.KindSingleChoice, dispatch.KindMultiChoice:
		return &selectionRenderer{base: base, multi: kind == dispatch.KindMultiChoice}
	case dispatch.KindText, dispatch.KindLongText:
		return &textRenderer{base: base, long: kind == dispatch.KindLongText}
	case dispatch.KindBlanks:
		return newBlanksRenderer(base)
	case dispatch.KindSpeaking:
		return newSpeakingRenderer(base)
	default:
		return newFallbackRenderer(base)
	}
}

// base carries the state every renderer shares: the question, its
// draft store, and media resolution.
type base struct {
	kind              dispatch.Kind
	question          models.Question
	sessionQuestionID uint
	deps              Deps
	store             *draft.Store
	logger            *slog.Logger
	active            bool
}

func newBase(kind dispatch.Kind, q models.Question, sessionQuestionID uint, deps Deps) base {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("question_id", q.ID, "renderer", string(kind))

	quiet := deps.QuietPeriod
	if quiet <= 0 {
		quiet = draft.DefaultQuietPeriod
	}

	return base{
		kind:              kind,
		question:          q,
		sessionQuestionID: sessionQuestionID,
		deps:              deps,
		logger:            logger,
		store: draft.NewStoreWithQuietPeriod(
			q.ID, sessionQuestionID, dispatch.ResponseTypeFor(kind),
			deps.Persister, logger, quiet),
	}
}

func (b *base) Kind() dispatch.Kind { return b.kind }

func (b *base) Draft() *models.ResponseDraft { return b.store.Draft() }

func (b *base) Flush(ctx context.Context) error {
	return b.store.Flush(ctx)
}

func (b *base) Drop() { b.store.Drop() }

// resolveMedia builds the media views for the question, falling back
// to placeholders for assets the resolver cannot produce a URL for.
func (b *base) resolveMedia(ctx context.Context) []MediaView {
	if len(b.question.Media) == 0 {
		return nil
	}
	views := make([]MediaView, 0, len(b.question.Media))
	for _, qm := range b.question.Media {
		view := MediaView{
			MediaID: qm.MediaID,
			Role:    qm.Role,
			Kind:    qm.Media.Kind,
		}
		if b.deps.Resolver == nil {
			view.Placeholder = true
			views = append(views, view)
			continue
		}
		url, err := b.deps.Resolver.Resolve(ctx, qm.MediaID)
		if err != nil {
			b.logger.Warn("media resolution failed", "media_id", qm.MediaID, "error", err)
			view.Placeholder = true
			view.LoadFailed = true
		} else if url == "" {
			view.Placeholder = true
		} else {
			view.URL = url
		}
		views = append(views, view)
	}
	return views
}

func (b *base) unsupported(ev InputEvent) error {
	return fmt.Errorf("%w: %s on %s", ErrUnsupportedInput, ev.Action, b.kind)
}
