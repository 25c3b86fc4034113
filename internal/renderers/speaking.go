package renderers

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prepstation/capture-service/internal/audio"
	"github.com/prepstation/capture-service/internal/models"
	"github.com/prepstation/capture-service/internal/phase"
	"github.com/prepstation/capture-service/internal/playback"
)

// speakingRenderer owns a phase machine, the audio capture engine,
// and a playback controller for reviewing the recorded answer.
type speakingRenderer struct {
	base

	machine *phase.Machine
	engine  *audio.Engine
	player  *playback.Player

	mu            sync.Mutex
	prepRemaining int
	tickValue     int
	captureErr    string
}

func newSpeakingRenderer(b base) *speakingRenderer {
	r := &speakingRenderer{base: b}

	r.engine = audio.NewEngine(b.deps.NewSource, b.logger)
	r.engine.OnDuration = r.onDurationRefined

	r.player = playback.NewPlayer(b.deps.Sink, b.deps.Fetch, b.logger)
	if b.deps.TickInterval > 0 {
		r.player.SetTickInterval(b.deps.TickInterval)
	}

	cfg := phase.Config{
		Speaking:     true,
		TickInterval: b.deps.TickInterval,
	}
	if pt := b.question.QuestionType.PrepTime; pt != nil {
		cfg.PrepSeconds = *pt
	}
	if tl := b.question.QuestionType.TimeLimit; tl != nil {
		cfg.InputSeconds = *tl
	}

	r.machine = phase.NewMachine(cfg, r.engine, phase.Callbacks{
		OnPhase: func(s phase.State) {
			if s == phase.StateRecording && b.deps.OnRecordingStarted != nil {
				b.deps.OnRecordingStarted()
			}
		},
		OnPrepTick: func(remaining int) {
			r.mu.Lock()
			r.prepRemaining = remaining
			r.mu.Unlock()
		},
		OnTick: func(v int) {
			r.mu.Lock()
			r.tickValue = v
			r.mu.Unlock()
		},
		OnFinalize:     r.onFinalize,
		OnCaptureError: r.onCaptureError,
	}, b.logger)

	return r
}

func (r *speakingRenderer) Activate(ctx context.Context) error {
	r.active = true
	r.machine.Start(ctx)
	return nil
}

func (r *speakingRenderer) Apply(ctx context.Context, ev InputEvent) error {
	if !r.active {
		return ErrNotActive
	}
	switch ev.Action {
	case ActionStopRecording:
		r.machine.Stop()
		return nil
	case ActionReRecord:
		r.store.ClearClip()
		r.player.Release()
		r.machine.Reset()
		return nil
	case ActionPlay:
		return r.player.Play(ctx)
	case ActionPause:
		r.player.Pause()
		return nil
	case ActionSeek:
		r.player.Seek(time.Duration(ev.SeekSec * float64(time.Second)))
		return nil
	default:
		return r.unsupported(ev)
	}
}

// ExternalPrepUpdate forwards an externally driven preparation
// countdown, for questions sharing one across a multi-part passage.
func (r *speakingRenderer) ExternalPrepUpdate(remaining *int) {
	r.machine.ExternalPrepUpdate(remaining)
}

func (r *speakingRenderer) onFinalize(clip models.AudioClip, err error) {
	if err != nil {
		if errors.Is(err, audio.ErrEmptyCapture) {
			// Zero-length capture is "no response"; the draft stays
			// empty rather than holding an empty answer.
			r.logger.Warn("recording finalized empty, treating as no response")
			if r.deps.OnRecordingFinalized != nil {
				r.deps.OnRecordingFinalized(0, 0, true)
			}
			return
		}
		r.setCaptureError(err)
		return
	}

	if r.deps.OnRecordingFinalized != nil {
		r.deps.OnRecordingFinalized(clip.Duration.Seconds(), len(clip.Data), false)
	}

	if err := r.store.SetClip(clip); err != nil {
		r.logger.Warn("captured clip rejected", "error", err)
		return
	}
	if err := r.player.LoadClip(clip); err != nil {
		r.logger.Warn("recorded clip not playable", "error", err)
	}
}

func (r *speakingRenderer) onDurationRefined(clip models.AudioClip) {
	// The probe runs asynchronously; a re-record may have replaced the
	// clip in the meantime. Refine only the clip the draft still holds.
	d := r.store.Draft()
	if d.Audio == nil || !bytes.Equal(d.Audio.Data, clip.Data) {
		return
	}
	_ = r.store.SetClip(clip)
}

func (r *speakingRenderer) onCaptureError(err error) {
	r.setCaptureError(err)
}

func (r *speakingRenderer) setCaptureError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if errors.Is(err, audio.ErrMicrophoneUnavailable) {
		r.captureErr = "Microphone is unavailable or access was denied. Check your input device and try again."
		return
	}
	r.captureErr = "Recording failed. Please try again."
}

func (r *speakingRenderer) View(ctx context.Context) *View {
	v := r.baseView(r.kind)
	v.Media = r.resolveMedia(ctx)

	r.mu.Lock()
	rec := &RecordingView{
		Phase:         r.machine.State(),
		PrepRemaining: r.prepRemaining,
		CaptureError:  r.captureErr,
	}
	tick := r.tickValue
	r.mu.Unlock()

	if r.question.QuestionType.TimeLimit != nil {
		rec.SecondsRemaining = tick
	} else {
		rec.SecondsElapsed = tick
	}

	if d := r.store.Draft(); d.Audio != nil {
		rec.HasClip = true
		rec.ClipDurationSec = d.Audio.Duration.Seconds()
	}
	v.Recording = rec
	return v
}

func (r *speakingRenderer) Teardown() {
	r.active = false
	r.machine.Teardown()
	r.player.Release()
}
