package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prepstation/capture-service/internal/events"
	"github.com/prepstation/capture-service/internal/models"
	"github.com/prepstation/capture-service/internal/renderers"
	"github.com/prepstation/capture-service/internal/validator"
)

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) GetSessionQuestion(ctx context.Context, id uint) (*models.SessionQuestion, error) {
	args := m.Called(ctx, id)
	if sq := args.Get(0); sq != nil {
		return sq.(*models.SessionQuestion), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionStore) MarkSubmitted(ctx context.Context, sessionQuestionID uint) error {
	args := m.Called(ctx, sessionQuestionID)
	return args.Error(0)
}

type recordingPersister struct {
	mu        sync.Mutex
	failNext  bool
	envelopes []*models.ResponseEnvelope
}

func (p *recordingPersister) Persist(_ context.Context, env *models.ResponseEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext {
		return errors.New("storage offline")
	}
	p.envelopes = append(p.envelopes, env)
	return nil
}

func (p *recordingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.envelopes)
}

func textSessionQuestion(id uint) *models.SessionQuestion {
	return &models.SessionQuestion{
		ID:         id,
		SessionID:  1,
		QuestionID: 100 + id,
		Question: models.Question{
			ID:    100 + id,
			Title: "Describe the process",
			QuestionType: models.QuestionType{
				InputType: "free_text",
			},
		},
	}
}

func newTestService(t *testing.T) (CaptureService, *mockSessionStore, *recordingPersister, *events.MockEventPublisher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	store := &mockSessionStore{}
	persister := &recordingPersister{}
	publisher := events.NewMockEventPublisher(logger)

	svc := NewCaptureService(store, renderers.Deps{
		Persister:   persister,
		Logger:      logger,
		QuietPeriod: 50 * time.Millisecond,
	}, publisher, validator.New(), logger)

	return svc, store, persister, publisher
}

func eventTypes(pub *events.MockEventPublisher) []events.EventType {
	var out []events.EventType
	for _, ev := range pub.GetPublishedEvents() {
		out = append(out, ev.Type)
	}
	return out
}

func TestActivatePublishesEventAndReturnsView(t *testing.T) {
	svc, store, _, publisher := newTestService(t)
	store.On("GetSessionQuestion", mock.Anything, uint(7)).Return(textSessionQuestion(7), nil)

	view, err := svc.Activate(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "Describe the process", view.Title)

	assert.Contains(t, eventTypes(publisher), events.EventQuestionActivated)
	store.AssertExpectations(t)
}

func TestActivateUnknownSessionQuestion(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.On("GetSessionQuestion", mock.Anything, uint(9)).Return(nil, errors.New("record not found"))

	_, err := svc.Activate(context.Background(), 9)
	assert.ErrorIs(t, err, ErrSessionQuestionNotFound)
}

func TestSwitchingQuestionsFlushesAndRetiresPrevious(t *testing.T) {
	svc, store, persister, publisher := newTestService(t)
	store.On("GetSessionQuestion", mock.Anything, uint(1)).Return(textSessionQuestion(1), nil)
	store.On("GetSessionQuestion", mock.Anything, uint(2)).Return(textSessionQuestion(2), nil)

	_, err := svc.Activate(context.Background(), 1)
	require.NoError(t, err)

	_, err = svc.Input(context.Background(), renderers.InputEvent{Action: renderers.ActionText, Text: "partial answer"})
	require.NoError(t, err)

	_, err = svc.Activate(context.Background(), 2)
	require.NoError(t, err)

	require.GreaterOrEqual(t, persister.count(), 1, "previous draft must land before the next question activates")
	assert.Contains(t, eventTypes(publisher), events.EventDraftFlushed)
}

func TestSubmitFlushesAndFinalizes(t *testing.T) {
	svc, store, persister, publisher := newTestService(t)
	store.On("GetSessionQuestion", mock.Anything, uint(3)).Return(textSessionQuestion(3), nil)
	store.On("MarkSubmitted", mock.Anything, uint(3)).Return(nil)

	_, err := svc.Activate(context.Background(), 3)
	require.NoError(t, err)

	_, err = svc.Input(context.Background(), renderers.InputEvent{Action: renderers.ActionText, Text: "final answer"})
	require.NoError(t, err)

	require.NoError(t, svc.Submit(context.Background()))

	require.GreaterOrEqual(t, persister.count(), 1)
	assert.Equal(t, "final answer", persister.envelopes[len(persister.envelopes)-1].Text)
	assert.Contains(t, eventTypes(publisher), events.EventResponseSubmitted)

	// Question is no longer active after submission.
	assert.ErrorIs(t, svc.Submit(context.Background()), ErrNoActiveQuestion)
	store.AssertExpectations(t)
}

func TestSubmitFlushFailureKeepsQuestionActive(t *testing.T) {
	svc, store, persister, _ := newTestService(t)
	store.On("GetSessionQuestion", mock.Anything, uint(4)).Return(textSessionQuestion(4), nil)

	_, err := svc.Activate(context.Background(), 4)
	require.NoError(t, err)

	_, err = svc.Input(context.Background(), renderers.InputEvent{Action: renderers.ActionText, Text: "draft"})
	require.NoError(t, err)

	persister.mu.Lock()
	persister.failNext = true
	persister.mu.Unlock()

	err = svc.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitFlushFailed)

	// Still active: the learner can retry.
	persister.mu.Lock()
	persister.failNext = false
	persister.mu.Unlock()
	_, err = svc.View(context.Background())
	assert.NoError(t, err)
}

func TestAbandonDropsDraftWithoutPersisting(t *testing.T) {
	svc, store, persister, publisher := newTestService(t)
	store.On("GetSessionQuestion", mock.Anything, uint(5)).Return(textSessionQuestion(5), nil)

	_, err := svc.Activate(context.Background(), 5)
	require.NoError(t, err)

	_, err = svc.Input(context.Background(), renderers.InputEvent{Action: renderers.ActionText, Text: "abandoned thought"})
	require.NoError(t, err)

	require.NoError(t, svc.Abandon(context.Background()))

	// The pending debounce was cancelled.
	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, persister.count())
	assert.Contains(t, eventTypes(publisher), events.EventQuestionAbandoned)
}

func TestInputWithoutActiveQuestion(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Input(context.Background(), renderers.InputEvent{Action: renderers.ActionText, Text: "x"})
	assert.ErrorIs(t, err, ErrNoActiveQuestion)
}

func TestInputValidation(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.On("GetSessionQuestion", mock.Anything, uint(6)).Return(textSessionQuestion(6), nil)

	_, err := svc.Activate(context.Background(), 6)
	require.NoError(t, err)

	_, err = svc.Input(context.Background(), renderers.InputEvent{})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestExternalPrepUpdateRequiresSpeakingQuestion(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.On("GetSessionQuestion", mock.Anything, uint(8)).Return(textSessionQuestion(8), nil)

	assert.ErrorIs(t, svc.ExternalPrepUpdate(nil), ErrNoActiveQuestion)

	_, err := svc.Activate(context.Background(), 8)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ExternalPrepUpdate(nil), ErrInputNotApplicable)
}
