package renderers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepstation/capture-service/internal/audio"
	"github.com/prepstation/capture-service/internal/dispatch"
	"github.com/prepstation/capture-service/internal/models"
)

// nullPersister accepts every envelope.
type nullPersister struct {
	mu        sync.Mutex
	envelopes []*models.ResponseEnvelope
}

func (n *nullPersister) Persist(_ context.Context, env *models.ResponseEnvelope) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.envelopes = append(n.envelopes, env)
	return nil
}

// fakeMicSource feeds a fixed PCM buffer.
type fakeMicSource struct {
	mu sync.Mutex
	ch chan []byte
}

func (f *fakeMicSource) Start(ctx context.Context) (<-chan []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch = make(chan []byte, 4)
	f.ch <- make([]byte, 1280)
	return f.ch, nil
}

func (f *fakeMicSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ch != nil {
		close(f.ch)
		f.ch = nil
	}
	return nil
}

type silentSink struct{}

func (silentSink) Play(ctx context.Context, pcm []byte, rate int) error { return nil }
func (silentSink) Stop()                                                {}

func testDeps(p *nullPersister) Deps {
	return Deps{
		Persister:    p,
		NewSource:    func() audio.Source { return &fakeMicSource{} },
		Sink:         silentSink{},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)})),
		QuietPeriod:  10 * time.Millisecond,
		TickInterval: 5 * time.Millisecond,
	}
}

func questionOfType(input string, hint *string) models.Question {
	return models.Question{
		ID:    11,
		Title: "Sample question",
		QuestionType: models.QuestionType{
			InputType:   input,
			UIComponent: hint,
		},
	}
}

func TestBlanksRendererMarkerOrderAndIsolation(t *testing.T) {
	p := &nullPersister{}
	q := questionOfType("fill_blank", nil)
	q.Content = "The {{blank_1}} jumped over the {{blank_2}}"
	cfg, _ := json.Marshal(models.BlanksConfig{Blanks: []models.BlankSlot{
		{ID: "blank_1", Answer: "fox"},
		{ID: "blank_2", Answer: "dog", MaxLength: 10},
	}})
	q.BlanksConfig = cfg

	r := New(q, 1, testDeps(p))
	require.Equal(t, dispatch.KindBlanks, r.Kind())
	require.NoError(t, r.Activate(context.Background()))
	defer r.Teardown()

	view := r.View(context.Background())
	var blanks []string
	for _, seg := range view.Segments {
		if seg.BlankID != "" {
			blanks = append(blanks, seg.BlankID)
		}
	}
	assert.Equal(t, []string{"blank_1", "blank_2"}, blanks, "exactly two slots in marker order")

	require.NoError(t, r.Apply(context.Background(), InputEvent{Action: ActionBlank, BlankID: "blank_1", Text: "fox"}))
	require.NoError(t, r.Apply(context.Background(), InputEvent{Action: ActionBlank, BlankID: "blank_2", Text: "dog"}))

	d := r.Draft()
	assert.Equal(t, "fox", d.BlankAnswers["blank_1"], "edit to blank_2 must not touch blank_1")
	assert.Equal(t, "dog", d.BlankAnswers["blank_2"])
}

func TestBlanksRendererEnforcesMaxLength(t *testing.T) {
	p := &nullPersister{}
	q := questionOfType("fill_blank", nil)
	q.Content = "{{blank_1}}"
	cfg, _ := json.Marshal(models.BlanksConfig{Blanks: []models.BlankSlot{
		{ID: "blank_1", Answer: "ok", MaxLength: 4},
	}})
	q.BlanksConfig = cfg

	r := New(q, 1, testDeps(p))
	require.NoError(t, r.Activate(context.Background()))
	defer r.Teardown()

	require.NoError(t, r.Apply(context.Background(), InputEvent{Action: ActionBlank, BlankID: "blank_1", Text: "overflowing"}))
	assert.Equal(t, "over", r.Draft().BlankAnswers["blank_1"])

	// Multi-byte input truncates on a rune boundary, never mid-rune.
	require.NoError(t, r.Apply(context.Background(), InputEvent{Action: ActionBlank, BlankID: "blank_1", Text: "日本語テスト"}))
	got := r.Draft().BlankAnswers["blank_1"]
	assert.Equal(t, "日本語テ", got)
	assert.True(t, utf8.ValidString(got))
}

func TestSelectionRendererSingleChoice(t *testing.T) {
	p := &nullPersister{}
	q := questionOfType("single_choice", nil)
	q.Options = []models.Option{
		{ID: 1, Text: "A", DisplayOrder: 1},
		{ID: 2, Text: "B", DisplayOrder: 2},
	}

	r := New(q, 1, testDeps(p))
	require.Equal(t, dispatch.KindSingleChoice, r.Kind())
	require.NoError(t, r.Activate(context.Background()))
	defer r.Teardown()

	require.NoError(t, r.Apply(context.Background(), InputEvent{Action: ActionSelect, OptionID: 1}))
	require.NoError(t, r.Apply(context.Background(), InputEvent{Action: ActionSelect, OptionID: 2}))

	assert.Equal(t, []uint{2}, r.Draft().SelectedOptionIDs, "exactly one selected id, never two")

	view := r.View(context.Background())
	require.Len(t, view.Options, 2)
	assert.False(t, view.Options[0].Selected)
	assert.True(t, view.Options[1].Selected)
}

func TestDispatchUnrecognizedTypeYieldsFallback(t *testing.T) {
	p := &nullPersister{}
	q := questionOfType("drag_and_drop", nil)

	r := New(q, 1, testDeps(p))
	require.Equal(t, dispatch.KindFallback, r.Kind())
	require.NoError(t, r.Activate(context.Background()))
	defer r.Teardown()

	view := r.View(context.Background())
	assert.NotEmpty(t, view.Notice, "fallback must surface a visible limitation notice")
	assert.Nil(t, view.Diagnostics, "diagnostics hidden outside developer mode")

	// Best-effort capture still works.
	require.NoError(t, r.Apply(context.Background(), InputEvent{Action: ActionText, Text: "best effort"}))
	assert.Equal(t, "best effort", r.Draft().Text)
}

func TestFallbackDiagnosticsGatedByDebugMode(t *testing.T) {
	p := &nullPersister{}
	deps := testDeps(p)
	deps.Diagnostics = true
	hint := "hologram_widget"
	q := questionOfType("hologram", &hint)

	r := New(q, 1, deps)
	require.NoError(t, r.Activate(context.Background()))
	defer r.Teardown()

	view := r.View(context.Background())
	require.NotNil(t, view.Diagnostics)
	assert.Equal(t, "hologram", view.Diagnostics["input_type"])
	assert.Equal(t, "hologram_widget", view.Diagnostics["ui_component"])
}

func TestSpeakingRendererCapturesClip(t *testing.T) {
	p := &nullPersister{}
	prep, limit := 2, 60
	q := questionOfType("audio", nil)
	q.QuestionType.PrepTime = &prep
	q.QuestionType.TimeLimit = &limit

	r := New(q, 1, testDeps(p))
	require.Equal(t, dispatch.KindSpeaking, r.Kind())
	require.NoError(t, r.Activate(context.Background()))
	defer r.Teardown()

	// Preparation elapses, recording starts automatically.
	sp := r.(*speakingRenderer)
	require.Eventually(t, func() bool {
		return sp.machine.State() == "recording"
	}, time.Second, time.Millisecond)

	require.NoError(t, r.Apply(context.Background(), InputEvent{Action: ActionStopRecording}))

	require.Eventually(t, func() bool {
		d := r.Draft()
		return d.Audio != nil && !d.Audio.Empty()
	}, time.Second, time.Millisecond)

	view := r.View(context.Background())
	require.NotNil(t, view.Recording)
	assert.True(t, view.Recording.HasClip)
}

func TestSpeakingRendererStaleDurationRefinementIgnored(t *testing.T) {
	p := &nullPersister{}
	q := questionOfType("audio", nil)

	r := New(q, 1, testDeps(p))
	require.NoError(t, r.Activate(context.Background()))
	defer r.Teardown()

	sp := r.(*speakingRenderer)
	current := models.AudioClip{Data: []byte("second take"), MimeType: "audio/wav"}
	require.NoError(t, sp.store.SetClip(current))

	// A probe started before a re-record carries the old clip; it must
	// not clobber the current one.
	stale := models.AudioClip{Data: []byte("first take"), MimeType: "audio/wav", Duration: 9 * time.Second}
	sp.onDurationRefined(stale)

	d := r.Draft()
	require.NotNil(t, d.Audio)
	assert.Equal(t, []byte("second take"), d.Audio.Data)
	assert.Zero(t, d.Audio.Duration)

	// The probe for the clip the draft still holds refines its duration.
	refined := current
	refined.Duration = 2 * time.Second
	sp.onDurationRefined(refined)
	assert.Equal(t, 2*time.Second, r.Draft().Audio.Duration)
}

func TestSpeakingRendererTeardownReleasesCapture(t *testing.T) {
	p := &nullPersister{}
	limit := 60
	q := questionOfType("audio", nil)
	q.QuestionType.TimeLimit = &limit

	r := New(q, 1, testDeps(p))
	require.NoError(t, r.Activate(context.Background()))

	sp := r.(*speakingRenderer)
	require.Eventually(t, func() bool {
		return sp.engine.Capturing()
	}, time.Second, time.Millisecond)

	r.Teardown()
	assert.False(t, sp.engine.Capturing(), "microphone held after teardown")
}
