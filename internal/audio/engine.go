// Package audio acquires the microphone, buffers encoded chunks, and
// assembles finalized clips with duration metadata.
package audio

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/prepstation/capture-service/internal/models"
)

var (
	// ErrMicrophoneUnavailable covers permission denial and missing
	// devices. Recoverable: the caller reports it and stays in its
	// pre-recording phase.
	ErrMicrophoneUnavailable = errors.New("microphone unavailable or access denied")

	// ErrEmptyCapture marks a finalized recording with zero captured
	// bytes. Treated as "no response", never persisted as an answer.
	ErrEmptyCapture = errors.New("recording captured no audio")

	ErrNotCapturing = errors.New("no capture in progress")
)

// Source is one exclusive microphone stream. Stop must release the
// underlying hardware; leaking an open stream is a defect.
type Source interface {
	// Start acquires the device and begins delivering PCM chunks.
	Start(ctx context.Context) (<-chan []byte, error)
	// Stop halts delivery and releases the device. Idempotent.
	Stop() error
}

// SourceFactory opens a fresh Source per recording session.
type SourceFactory func() Source

// Engine buffers PCM from one Source at a time and finalizes it into
// a WAV clip. At most one capture may be in progress; a second Start
// while capturing is a no-op.
type Engine struct {
	newSource SourceFactory
	logger    *slog.Logger

	mu        sync.Mutex
	source    Source
	buf       []byte
	capturing bool
	finalized bool
	drained   chan struct{}

	// OnDuration receives the async best-effort duration refinement
	// for the most recently finalized clip.
	OnDuration func(d models.AudioClip)
}

func NewEngine(newSource SourceFactory, logger *slog.Logger) *Engine {
	return &Engine{
		newSource: newSource,
		logger:    logger,
	}
}

// Capturing reports whether a recording session is in progress.
func (e *Engine) Capturing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capturing
}

// Start acquires the microphone and begins buffering. Acquisition
// failure surfaces ErrMicrophoneUnavailable and leaves the engine in
// its pre-recording state. Re-invoking Start while capturing is a
// no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.capturing {
		e.mu.Unlock()
		return nil
	}
	src := e.newSource()
	e.mu.Unlock()

	chunks, err := src.Start(ctx)
	if err != nil {
		e.logger.Warn("microphone acquisition failed", "error", err)
		return errors.Join(ErrMicrophoneUnavailable, err)
	}

	e.mu.Lock()
	e.source = src
	e.buf = e.buf[:0]
	e.capturing = true
	e.finalized = false
	e.drained = make(chan struct{})
	drained := e.drained
	e.mu.Unlock()

	// Drain until the source closes the channel on release, so PCM
	// flushed during Stop still lands in the buffer.
	go func() {
		defer close(drained)
		for chunk := range chunks {
			e.mu.Lock()
			e.buf = append(e.buf, chunk...)
			e.mu.Unlock()
		}
	}()

	e.logger.Info("audio capture started")
	return nil
}

// Stop finalizes the session: releases the device, assembles the WAV
// clip, and returns it. The duration on the returned clip is derived
// synchronously from the buffered byte count; a refined value from the
// container probe is delivered asynchronously through OnDuration and
// never blocks this call. Stopping twice, or without a capture in
// progress, returns ErrNotCapturing.
func (e *Engine) Stop() (models.AudioClip, error) {
	e.mu.Lock()
	if !e.capturing || e.finalized {
		e.mu.Unlock()
		return models.AudioClip{}, ErrNotCapturing
	}
	e.finalized = true
	e.capturing = false
	src := e.source
	e.source = nil
	drained := e.drained
	e.mu.Unlock()

	// Device release happens before the clip is assembled so the
	// hardware is never held past finalize, even on error paths.
	if err := src.Stop(); err != nil {
		e.logger.Warn("releasing capture source failed", "error", err)
	}
	if drained != nil {
		<-drained
	}

	e.mu.Lock()
	pcm := append([]byte(nil), e.buf...)
	e.buf = e.buf[:0]
	e.mu.Unlock()

	if len(pcm) == 0 {
		e.logger.Warn("capture finalized with zero bytes")
		return models.AudioClip{}, ErrEmptyCapture
	}

	clip := models.AudioClip{
		Data:     EncodeWAV(pcm),
		MimeType: MimeTypeWAV,
		Duration: 0,
	}

	go e.probeDuration(clip)

	e.logger.Info("audio capture finalized", "pcm_bytes", len(pcm))
	return clip, nil
}

// Abort releases the device without producing a clip. Used on
// question abandonment where no finalize is desired. Idempotent.
func (e *Engine) Abort() {
	e.mu.Lock()
	if !e.capturing {
		e.mu.Unlock()
		return
	}
	src := e.source
	e.source = nil
	e.capturing = false
	e.finalized = true
	drained := e.drained
	e.mu.Unlock()

	if src != nil {
		if err := src.Stop(); err != nil {
			e.logger.Warn("releasing capture source on abort failed", "error", err)
		}
	}
	if drained != nil {
		<-drained
	}

	e.mu.Lock()
	e.buf = e.buf[:0]
	e.mu.Unlock()

	e.logger.Info("audio capture aborted")
}

func (e *Engine) probeDuration(clip models.AudioClip) {
	d, err := ProbeDuration(clip.Data)
	if err != nil {
		e.logger.Warn("duration probe failed", "error", err)
		return
	}
	clip.Duration = d
	e.mu.Lock()
	cb := e.OnDuration
	e.mu.Unlock()
	if cb != nil {
		cb(clip)
	}
}
