package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prepstation/capture-service/internal/events"
	"github.com/prepstation/capture-service/internal/models"
	"github.com/prepstation/capture-service/internal/renderers"
	"github.com/prepstation/capture-service/internal/validator"
)

// SessionStore is the persistence surface the capture service needs
// beyond the renderer's own autosave path.
type SessionStore interface {
	GetSessionQuestion(ctx context.Context, id uint) (*models.SessionQuestion, error)
	MarkSubmitted(ctx context.Context, sessionQuestionID uint) error
}

// CaptureService drives the per-question capture lifecycle: at most
// one renderer is active, and switching questions tears the previous
// one down before the next activates.
type CaptureService interface {
	Activate(ctx context.Context, sessionQuestionID uint) (*renderers.View, error)
	Input(ctx context.Context, ev renderers.InputEvent) (*renderers.View, error)
	View(ctx context.Context) (*renderers.View, error)
	ExternalPrepUpdate(remaining *int) error
	Submit(ctx context.Context) error
	Abandon(ctx context.Context) error
	Close() error
}

type captureService struct {
	store     SessionStore
	deps      renderers.Deps
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *slog.Logger
	opLog     *ServiceLogger

	mu       sync.Mutex
	active   renderers.Renderer
	activeSQ *models.SessionQuestion
}

func NewCaptureService(
	store SessionStore,
	deps renderers.Deps,
	publisher events.EventPublisher,
	v *validator.Validator,
	logger *slog.Logger,
) CaptureService {
	return &captureService{
		store:     store,
		deps:      deps,
		publisher: publisher,
		validator: v,
		logger:    logger,
		opLog: NewServiceLogger(logger, LogConfig{
			Service:   "capture-service",
			Component: "capture",
		}),
	}
}

// Activate loads the session question, tears down any previously
// active renderer, and activates the new one. Teardown always
// completes before the next renderer starts.
func (s *captureService) Activate(ctx context.Context, sessionQuestionID uint) (view *renderers.View, err error) {
	op := s.opLog.WithOperation(ctx, "activate")
	defer func() { op.LogResult(sessionQuestionID, err) }()

	sq, err := s.store.GetSessionQuestion(ctx, sessionQuestionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrSessionQuestionNotFound, sessionQuestionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.retireActiveLocked(ctx)

	deps := s.deps
	deps.OnRecordingStarted = func() {
		s.publish(ctx, events.NewRecordingStartedEvent(
			sq.QuestionID, sq.ID, sq.Question.QuestionType.TimeLimit))
	}
	deps.OnRecordingFinalized = func(durationSec float64, sizeBytes int, empty bool) {
		s.publish(ctx, events.NewRecordingFinalizedEvent(
			sq.QuestionID, sq.ID, durationSec, sizeBytes, empty))
	}

	r := renderers.New(sq.Question, sq.ID, deps)
	if err := r.Activate(ctx); err != nil {
		r.Teardown()
		return nil, fmt.Errorf("failed to activate renderer: %w", err)
	}

	s.active = r
	s.activeSQ = sq

	s.publish(ctx, events.NewQuestionActivatedEvent(sq.QuestionID, sq.ID, string(r.Kind())))
	return r.View(ctx), nil
}

// Input validates and applies one edit to the active renderer.
func (s *captureService) Input(ctx context.Context, ev renderers.InputEvent) (view *renderers.View, err error) {
	if err := s.validator.ValidateStruct(&ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, ErrNoActiveQuestion
	}
	if err := s.active.Apply(ctx, ev); err != nil {
		return nil, err
	}
	return s.active.View(ctx), nil
}

func (s *captureService) View(ctx context.Context) (*renderers.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, ErrNoActiveQuestion
	}
	return s.active.View(ctx), nil
}

// ExternalPrepUpdate forwards a shared preparation countdown to the
// active renderer. Only speaking renderers consume it.
func (s *captureService) ExternalPrepUpdate(remaining *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return ErrNoActiveQuestion
	}
	if fw, ok := s.active.(interface{ ExternalPrepUpdate(*int) }); ok {
		fw.ExternalPrepUpdate(remaining)
		return nil
	}
	return ErrInputNotApplicable
}

// Submit flushes the draft synchronously and finalizes the response.
// A flush failure keeps the question active so the learner can retry.
func (s *captureService) Submit(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return ErrNoActiveQuestion
	}
	sq := s.activeSQ

	op := s.opLog.WithOperation(ctx, "submit")
	defer func() { op.LogResult(sq.ID, err) }()

	if err := s.active.Flush(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFlushFailed, err)
	}

	if err := s.store.MarkSubmitted(ctx, sq.ID); err != nil {
		return fmt.Errorf("failed to finalize submission: %w", err)
	}

	d := s.active.Draft()
	s.publish(ctx, events.NewResponseSubmittedEvent(
		sq.QuestionID, sq.ID, string(d.ResponseType), d.Audio != nil && !d.Audio.Empty()))

	s.active.Teardown()
	s.active = nil
	s.activeSQ = nil
	return nil
}

// Abandon discards the active draft without persisting it.
func (s *captureService) Abandon(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return ErrNoActiveQuestion
	}
	sq := s.activeSQ

	op := s.opLog.WithOperation(ctx, "abandon")
	defer func() { op.LogResult(sq.ID, err) }()

	s.active.Drop()
	s.active.Teardown()
	s.active = nil
	s.activeSQ = nil

	s.publish(ctx, events.NewQuestionAbandonedEvent(sq.QuestionID, sq.ID))
	return nil
}

// Close tears down whatever is active. Used on shutdown.
func (s *captureService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.Teardown()
		s.active = nil
		s.activeSQ = nil
	}
	return nil
}

// retireActiveLocked flushes and tears down the current renderer
// before another takes its place. Flush failures are logged, not
// fatal: navigation must not strand the learner.
func (s *captureService) retireActiveLocked(ctx context.Context) {
	if s.active == nil {
		return
	}
	if d := s.active.Draft(); !d.Empty() {
		if err := s.active.Flush(ctx); err != nil {
			s.logger.Warn("draft flush on question switch failed",
				"session_question_id", s.activeSQ.ID, "error", err)
		} else {
			s.publish(ctx, events.NewDraftFlushedEvent(
				s.activeSQ.QuestionID, s.activeSQ.ID, string(d.ResponseType)))
		}
	}
	s.active.Teardown()
	s.active = nil
	s.activeSQ = nil
}

// publish sends a lifecycle event best-effort. Event transport
// failures never fail a capture operation.
func (s *captureService) publish(ctx context.Context, ev *events.CaptureEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCaptureEvent(ctx, ev); err != nil {
		s.logger.Warn("capture event publish failed", "event_type", ev.Type, "error", err)
	}
}
