package playback

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// PulseSink renders PCM through the default PulseAudio output device.
type PulseSink struct {
	appName string

	mu     sync.Mutex
	client *pulse.Client
	stream *pulse.PlaybackStream
}

func NewPulseSink(appName string) *PulseSink {
	return &PulseSink{appName: appName}
}

// Play blocks until the PCM has drained, Stop is called, or the
// context is cancelled.
func (s *PulseSink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	client, err := pulse.NewClient(pulse.ClientApplicationName(s.appName))
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}

	reader := pulse.NewReader(bytes.NewReader(pcm), pulseproto.FormatInt16LE)
	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackMediaName("response playback"),
	)
	if err != nil {
		client.Close()
		return fmt.Errorf("create pulse playback stream: %w", err)
	}

	s.mu.Lock()
	s.client = client
	s.stream = stream
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		stream.Start()
		stream.Drain()
		close(done)
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		<-done
	case <-done:
		s.release()
	}
	return nil
}

// Stop interrupts playback and releases the output stream.
func (s *PulseSink) Stop() {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream != nil {
		stream.Stop()
	}
	s.release()
}

func (s *PulseSink) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}
