package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const chunkSizeBytes = 640 // 20ms @ 16kHz mono s16

// PulseSource captures PCM from the default PulseAudio input device.
// One source serves one recording session; open a fresh one per
// session via NewPulseSource as the engine's SourceFactory.
type PulseSource struct {
	appName string

	mu      sync.Mutex
	client  *pulse.Client
	stream  *pulse.RecordStream
	chunks  chan []byte
	stopCh  chan struct{}
	pending []byte
	stopped bool
	started bool

	inflight sync.WaitGroup
}

// NewPulseSource returns a SourceFactory producing fresh Pulse capture
// sources under the given application name.
func NewPulseSource(appName string) SourceFactory {
	return func() Source {
		return &PulseSource{appName: appName}
	}
}

// Start connects to the Pulse server, opens a 16kHz mono s16 record
// stream on the default source, and begins delivering chunks.
func (s *PulseSource) Start(ctx context.Context) (<-chan []byte, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, fmt.Errorf("pulse source already started")
	}
	s.started = true
	s.chunks = make(chan []byte, 128)
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	client, err := pulse.NewClient(
		pulse.ClientApplicationName(s.appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.DefaultSource()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve default source: %w", err)
	}

	writer := pulse.NewWriter(writerFunc(s.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("response capture"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	s.mu.Lock()
	s.client = client
	s.stream = stream
	s.mu.Unlock()

	stream.Start()

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	return s.chunks, nil
}

// Stop halts the stream, flushes residual PCM, releases the device,
// and closes the chunk channel exactly once.
func (s *PulseSource) Stop() error {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.stopped = true
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	stream := s.stream
	client := s.client
	s.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	if client != nil {
		client.Close()
	}

	s.inflight.Wait()

	s.mu.Lock()
	pending := append([]byte(nil), s.pending...)
	s.pending = nil
	s.mu.Unlock()

	if len(pending) > 0 {
		select {
		case s.chunks <- pending:
		default:
		}
	}

	close(s.chunks)
	return nil
}

// onPCM receives raw Pulse frames and emits fixed-size chunks.
func (s *PulseSource) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-s.stopCh:
		return 0, io.EOF
	default:
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as s.stopped to avoid Add/Wait races.
	s.inflight.Add(1)

	s.pending = append(s.pending, buffer...)
	chunks := make([][]byte, 0, len(s.pending)/chunkSizeBytes)
	for len(s.pending) >= chunkSizeBytes {
		chunk := make([]byte, chunkSizeBytes)
		copy(chunk, s.pending[:chunkSizeBytes])
		s.pending = s.pending[chunkSizeBytes:]
		chunks = append(chunks, chunk)
	}
	s.mu.Unlock()
	defer s.inflight.Done()

	for _, chunk := range chunks {
		select {
		case <-s.stopCh:
			return 0, io.EOF
		case s.chunks <- chunk:
		}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
