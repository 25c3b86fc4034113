package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 5 * time.Millisecond

func TestCountdownFiresTerminalOnce(t *testing.T) {
	var mu sync.Mutex
	ticks := []int{}
	doneCount := 0
	done := make(chan struct{})

	c := NewCountdown(3, testInterval,
		func(remaining int) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		},
		func() {
			mu.Lock()
			doneCount++
			mu.Unlock()
			close(done)
		})
	c.Start()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("countdown never completed")
	}
	// Allow any stray goroutine activity to surface.
	time.Sleep(5 * testInterval)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 1, 0}, ticks)
	assert.Equal(t, 1, doneCount)
}

func TestCountdownZeroSecondsCompletesImmediately(t *testing.T) {
	fired := make(chan struct{})
	c := NewCountdown(0, testInterval, nil, func() { close(fired) })
	c.Start()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("terminal callback did not fire for zero-second countdown")
	}
}

func TestCountdownStopSuppressesCallbacks(t *testing.T) {
	var mu sync.Mutex
	tickCount := 0
	doneFired := false

	c := NewCountdown(100, testInterval,
		func(int) {
			mu.Lock()
			tickCount++
			mu.Unlock()
		},
		func() {
			mu.Lock()
			doneFired = true
			mu.Unlock()
		})
	c.Start()
	time.Sleep(3 * testInterval)
	c.Stop()

	mu.Lock()
	seen := tickCount
	mu.Unlock()

	time.Sleep(10 * testInterval)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, seen, tickCount, "tick fired after Stop")
	assert.False(t, doneFired)
}

func TestCountdownStopIdempotent(t *testing.T) {
	c := NewCountdown(10, testInterval, nil, nil)
	c.Start()
	c.Stop()
	require.NotPanics(t, c.Stop)
}

func TestCountdownStartAfterStopIsNoop(t *testing.T) {
	fired := false
	c := NewCountdown(1, testInterval, nil, func() { fired = true })
	c.Stop()
	c.Start()
	time.Sleep(5 * testInterval)
	assert.False(t, fired)
}

func TestStopwatchCountsAndStops(t *testing.T) {
	var mu sync.Mutex
	last := 0
	s := NewStopwatch(testInterval, func(elapsed int) {
		mu.Lock()
		last = elapsed
		mu.Unlock()
	})
	s.Start()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last >= 3
	}, time.Second, testInterval)

	s.Stop()
	mu.Lock()
	seen := last
	mu.Unlock()

	time.Sleep(10 * testInterval)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, seen, last, "stopwatch ticked after Stop")
	assert.Equal(t, last, s.Elapsed())
}
