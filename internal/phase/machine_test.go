package phase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepstation/capture-service/internal/models"
)

const tick = 5 * time.Millisecond

// fakeCapturer records start/stop/abort calls and hands back a canned
// clip.
type fakeCapturer struct {
	mu        sync.Mutex
	failStart bool
	starts    int
	stops     int
	aborts    int
	clip      models.AudioClip
}

func (f *fakeCapturer) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStart {
		return errors.New("permission denied")
	}
	f.starts++
	return nil
}

func (f *fakeCapturer) Stop() (models.AudioClip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.clip, nil
}

func (f *fakeCapturer) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
}

func (f *fakeCapturer) counts() (starts, stops, aborts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops, f.aborts
}

func speakingClip() models.AudioClip {
	return models.AudioClip{Data: []byte{1, 2, 3, 4}, MimeType: "audio/wav"}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
}

func TestMachineAutoStartsRecordingAfterPrep(t *testing.T) {
	cap := &fakeCapturer{clip: speakingClip()}
	phases := make(chan State, 8)
	finalized := make(chan models.AudioClip, 1)

	m := NewMachine(
		Config{PrepSeconds: 2, InputSeconds: 4, Speaking: true, TickInterval: tick},
		cap,
		Callbacks{
			OnPhase: func(s State) { phases <- s },
			OnFinalize: func(c models.AudioClip, err error) {
				require.NoError(t, err)
				finalized <- c
			},
		},
		discard())

	m.Start(context.Background())
	assert.Equal(t, StatePreparing, <-phases)
	assert.Equal(t, StateRecording, waitPhase(t, phases))

	starts, _, _ := cap.counts()
	assert.Equal(t, 1, starts, "capture must start automatically, no user action")

	// Recording countdown expires on its own.
	assert.Equal(t, StateCompleted, waitPhase(t, phases))
	select {
	case c := <-finalized:
		assert.NotEmpty(t, c.Data)
	case <-time.After(time.Second):
		t.Fatal("finalize never fired")
	}
	m.Teardown()
}

func waitPhase(t *testing.T, phases chan State) State {
	t.Helper()
	select {
	case s := <-phases:
		return s
	case <-time.After(time.Second):
		t.Fatal("phase transition never arrived")
		return ""
	}
}

func TestMachineStartsDirectlyInInputWithoutPrep(t *testing.T) {
	m := NewMachine(Config{InputSeconds: 10, TickInterval: tick}, nil, Callbacks{}, discard())
	m.Start(context.Background())
	assert.Equal(t, StateAwaitingInput, m.State())
	m.Teardown()
}

func TestMachineDoubleStopFinalizesOnce(t *testing.T) {
	cap := &fakeCapturer{clip: speakingClip()}
	var mu sync.Mutex
	finalizes := 0

	m := NewMachine(
		Config{InputSeconds: 1000, Speaking: true, TickInterval: tick},
		cap,
		Callbacks{OnFinalize: func(models.AudioClip, error) {
			mu.Lock()
			finalizes++
			mu.Unlock()
		}},
		discard())

	m.Start(context.Background())
	require.Equal(t, StateRecording, m.State())

	m.Stop()
	m.Stop()
	time.Sleep(5 * tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, finalizes)
	_, stops, _ := cap.counts()
	assert.Equal(t, 1, stops)
}

func TestMachineCaptureFailureStaysPreRecording(t *testing.T) {
	cap := &fakeCapturer{failStart: true}
	var capErr error
	done := make(chan struct{})

	m := NewMachine(
		Config{PrepSeconds: 1, Speaking: true, TickInterval: tick},
		cap,
		Callbacks{OnCaptureError: func(err error) {
			capErr = err
			close(done)
		}},
		discard())

	m.Start(context.Background())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("capture error never reported")
	}
	assert.Error(t, capErr)
	assert.Equal(t, StatePreparing, m.State(), "phase must not advance on device error")
	m.Teardown()
}

func TestMachineExternalPrepCompletesOnce(t *testing.T) {
	cap := &fakeCapturer{clip: speakingClip()}
	m := NewMachine(
		Config{ExternalPrep: true, InputSeconds: 1000, Speaking: true, TickInterval: tick},
		cap,
		Callbacks{},
		discard())

	m.Start(context.Background())
	require.Equal(t, StatePreparing, m.State())

	zero := 0
	m.ExternalPrepUpdate(&zero)
	m.ExternalPrepUpdate(&zero)

	assert.Equal(t, StateRecording, m.State())
	starts, _, _ := cap.counts()
	assert.Equal(t, 1, starts, "external completion must begin capture exactly once")
	m.Teardown()
}

func TestMachineExternalPrepWithdrawalHaltsWithoutRecording(t *testing.T) {
	cap := &fakeCapturer{}
	m := NewMachine(
		Config{ExternalPrep: true, InputSeconds: 1000, Speaking: true, TickInterval: tick},
		cap,
		Callbacks{},
		discard())

	m.Start(context.Background())
	m.ExternalPrepUpdate(nil)

	assert.Equal(t, StatePreparing, m.State())
	starts, _, _ := cap.counts()
	assert.Zero(t, starts, "withdrawn countdown must not auto-start recording")
	m.Teardown()
}

func TestMachineResetReturnsToPreparing(t *testing.T) {
	cap := &fakeCapturer{clip: speakingClip()}
	m := NewMachine(
		Config{PrepSeconds: 1000, InputSeconds: 1000, Speaking: true, TickInterval: tick},
		cap,
		Callbacks{},
		discard())

	m.Start(context.Background())
	require.Equal(t, StatePreparing, m.State())

	m.Reset()
	assert.Equal(t, StatePreparing, m.State())
	m.Teardown()
}

func TestMachineTeardownCancelsTimersAndReleasesMic(t *testing.T) {
	cap := &fakeCapturer{clip: speakingClip()}
	var mu sync.Mutex
	ticksAfter := 0
	tornDown := false

	m := NewMachine(
		Config{InputSeconds: 1000, Speaking: true, TickInterval: tick},
		cap,
		Callbacks{OnTick: func(int) {
			mu.Lock()
			if tornDown {
				ticksAfter++
			}
			mu.Unlock()
		}},
		discard())

	m.Start(context.Background())
	require.Equal(t, StateRecording, m.State())
	time.Sleep(3 * tick)

	m.Teardown()
	mu.Lock()
	tornDown = true
	mu.Unlock()

	time.Sleep(10 * tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, ticksAfter, "stray tick fired after teardown")
	_, _, aborts := cap.counts()
	assert.Equal(t, 1, aborts, "microphone not released on teardown")
}

// blockingCapturer parks inside Start until released, standing in for
// a slow device-acquisition round trip.
type blockingCapturer struct {
	fakeCapturer
	acquiring chan struct{}
	release   chan struct{}
}

func (b *blockingCapturer) Start(ctx context.Context) error {
	close(b.acquiring)
	<-b.release
	return b.fakeCapturer.Start(ctx)
}

func TestMachineTeardownDuringCaptureAcquisitionReleasesMic(t *testing.T) {
	cap := &blockingCapturer{
		acquiring: make(chan struct{}),
		release:   make(chan struct{}),
	}
	m := NewMachine(
		Config{PrepSeconds: 1, InputSeconds: 1000, Speaking: true, TickInterval: tick},
		cap,
		Callbacks{},
		discard())

	m.Start(context.Background())
	select {
	case <-cap.acquiring:
	case <-time.After(time.Second):
		t.Fatal("capture acquisition never began")
	}

	// Abandon the question while the microphone is still being
	// acquired, then let the acquisition complete.
	m.Teardown()
	close(cap.release)

	assert.Eventually(t, func() bool {
		_, _, aborts := cap.counts()
		return aborts == 1
	}, time.Second, tick, "capture acquired after teardown must be released")
	assert.NotEqual(t, StateRecording, m.State(), "machine must not enter recording after teardown")
}

func TestMachinePrepThenRecordScenario(t *testing.T) {
	// preparation=5s, recording=10s at a scaled tick: capture starts
	// automatically after prep and finalizes with a nonzero clip.
	cap := &fakeCapturer{clip: speakingClip()}
	finalized := make(chan models.AudioClip, 1)

	m := NewMachine(
		Config{PrepSeconds: 5, InputSeconds: 10, Speaking: true, TickInterval: tick},
		cap,
		Callbacks{OnFinalize: func(c models.AudioClip, err error) {
			require.NoError(t, err)
			finalized <- c
		}},
		discard())

	start := time.Now()
	m.Start(context.Background())

	select {
	case c := <-finalized:
		assert.Greater(t, len(c.Data), 0)
	case <-time.After(5 * time.Second):
		t.Fatal("scenario never finalized")
	}

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 15*tick, "finalize fired before prep+recording windows elapsed")
	m.Teardown()
}
