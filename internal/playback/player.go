// Package playback wraps one playable audio asset at a time — a
// just-recorded clip or a remote URL — and reports position and
// completion.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prepstation/capture-service/internal/audio"
	"github.com/prepstation/capture-service/internal/models"
	"github.com/prepstation/capture-service/internal/timer"
)

var (
	// ErrMediaLoad covers broken asset URLs and undecodable payloads.
	// Recoverable: renderers show an inline failure affordance with a
	// retry action instead of blocking the response area.
	ErrMediaLoad = errors.New("audio asset failed to load")

	ErrNoAsset = errors.New("no asset loaded")
)

// Sink plays decoded PCM. Stop interrupts playback and releases the
// output stream. Implementations must tolerate Stop without Play.
type Sink interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
	Stop()
}

// Fetcher retrieves the raw bytes behind a remote asset URL.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// Player holds at most one active asset. Loading a new asset first
// stops and releases the previous one.
type Player struct {
	sink    Sink
	fetch   Fetcher
	logger  *slog.Logger
	tickInt time.Duration

	mu       sync.Mutex
	pcm      []byte
	duration time.Duration
	position time.Duration
	playing  bool
	watch    *timer.Stopwatch

	// OnPosition fires once per tick interval while playing.
	OnPosition func(position, duration time.Duration)
	// OnEnd fires once when playback reaches the asset's end.
	OnEnd func()
}

func NewPlayer(sink Sink, fetch Fetcher, logger *slog.Logger) *Player {
	return &Player{
		sink:    sink,
		fetch:   fetch,
		logger:  logger,
		tickInt: time.Second,
	}
}

// SetTickInterval overrides the position-report interval. Tests use a
// short interval.
func (p *Player) SetTickInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickInt = d
}

// LoadClip makes a recorded clip the active asset.
func (p *Player) LoadClip(clip models.AudioClip) error {
	if clip.Empty() {
		return fmt.Errorf("%w: empty clip", ErrMediaLoad)
	}
	pcm, d, err := decodeWAV(clip.Data)
	if err != nil {
		return errors.Join(ErrMediaLoad, err)
	}
	p.swap(pcm, d)
	return nil
}

// LoadURL fetches a remote asset and makes it the active one.
func (p *Player) LoadURL(ctx context.Context, url string) error {
	data, err := p.fetch(ctx, url)
	if err != nil {
		p.logger.Warn("remote audio fetch failed", "url", url, "error", err)
		return errors.Join(ErrMediaLoad, err)
	}
	pcm, d, err := decodeWAV(data)
	if err != nil {
		return errors.Join(ErrMediaLoad, err)
	}
	p.swap(pcm, d)
	return nil
}

// swap releases any current asset and installs the new one.
func (p *Player) swap(pcm []byte, d time.Duration) {
	p.Pause()
	p.mu.Lock()
	p.pcm = pcm
	p.duration = d
	p.position = 0
	p.mu.Unlock()
}

// Duration returns the active asset's length.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Position returns the current playback offset.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Playing reports whether the asset is currently audible.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Play starts (or resumes) the active asset from the current
// position. Completion fires OnEnd once and rewinds.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	if p.pcm == nil {
		p.mu.Unlock()
		return ErrNoAsset
	}
	if p.playing {
		p.mu.Unlock()
		return nil
	}
	p.playing = true

	offset := frameOffset(p.position)
	if offset >= len(p.pcm) {
		offset = 0
		p.position = 0
	}
	segment := p.pcm[offset:]
	interval := p.tickInt
	p.watch = timer.NewStopwatch(interval, func(int) { p.tick(interval) })
	watch := p.watch
	p.mu.Unlock()

	watch.Start()

	go func() {
		err := p.sink.Play(ctx, segment, audio.SampleRate)
		p.mu.Lock()
		wasPlaying := p.playing
		p.playing = false
		if p.watch != nil {
			p.watch.Stop()
			p.watch = nil
		}
		ended := wasPlaying && err == nil
		if ended {
			p.position = 0
		}
		onEnd := p.OnEnd
		p.mu.Unlock()

		if err != nil {
			p.logger.Warn("playback sink error", "error", err)
			return
		}
		if ended && onEnd != nil {
			onEnd()
		}
	}()
	return nil
}

// Pause stops output and keeps the current position.
func (p *Player) Pause() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = false
	if p.watch != nil {
		p.watch.Stop()
		p.watch = nil
	}
	p.mu.Unlock()

	p.sink.Stop()
}

// Seek moves the playback offset, clamped to the asset bounds.
func (p *Player) Seek(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	if pos > p.duration {
		pos = p.duration
	}
	p.position = pos
}

// Release stops playback and drops the active asset.
func (p *Player) Release() {
	p.Pause()
	p.mu.Lock()
	p.pcm = nil
	p.duration = 0
	p.position = 0
	p.mu.Unlock()
}

func (p *Player) tick(interval time.Duration) {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.position += interval
	if p.position > p.duration {
		p.position = p.duration
	}
	pos, dur := p.position, p.duration
	cb := p.OnPosition
	p.mu.Unlock()

	if cb != nil {
		cb(pos, dur)
	}
}

// frameOffset converts a position to an even PCM byte offset.
func frameOffset(pos time.Duration) int {
	bytesPerSec := audio.SampleRate * 2
	off := int(pos.Seconds() * float64(bytesPerSec))
	return off &^ 1
}

// decodeWAV strips the container and returns PCM plus duration.
func decodeWAV(data []byte) ([]byte, time.Duration, error) {
	d, err := audio.ProbeDuration(data)
	if err != nil {
		return nil, 0, err
	}
	if len(data) <= 44 {
		return nil, 0, fmt.Errorf("wav container carries no samples")
	}
	return data[44:], d, nil
}
