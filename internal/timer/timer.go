// Package timer provides the two timer kinds the capture engine runs
// on: a one-shot per-second countdown and a free-running elapsed
// counter. All other components take their time from here.
package timer

import (
	"sync"
	"time"
)

// Countdown decrements once per interval from an initial number of
// seconds, invoking onTick after each decrement and onDone exactly once
// when it reaches zero. Stop cancels it; no callback fires after Stop.
type Countdown struct {
	interval time.Duration

	mu        sync.Mutex
	remaining int
	stopped   bool
	running   bool
	stopCh    chan struct{}

	onTick func(remaining int)
	onDone func()
}

// NewCountdown builds a countdown over the given number of seconds.
// A zero interval defaults to one second.
func NewCountdown(seconds int, interval time.Duration, onTick func(int), onDone func()) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		interval:  interval,
		remaining: seconds,
		stopCh:    make(chan struct{}),
		onTick:    onTick,
		onDone:    onDone,
	}
}

// Start begins ticking. Starting an already started or stopped
// countdown is a no-op. A countdown created with zero seconds fires
// its terminal callback immediately.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.running || c.stopped {
		c.mu.Unlock()
		return
	}
	c.running = true
	if c.remaining <= 0 {
		c.stopped = true
		done := c.onDone
		c.mu.Unlock()
		if done != nil {
			done()
		}
		return
	}
	c.mu.Unlock()

	go c.run()
}

func (c *Countdown) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.stopped {
				c.mu.Unlock()
				return
			}
			c.remaining--
			remaining := c.remaining
			tick := c.onTick
			var done func()
			if remaining <= 0 {
				c.stopped = true
				done = c.onDone
			}
			c.mu.Unlock()

			if tick != nil {
				tick(remaining)
			}
			if done != nil {
				done()
				return
			}
		}
	}
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stop cancels the countdown. Idempotent. Once Stop returns, neither
// the tick nor the terminal callback will fire again.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
}

// Stopwatch counts elapsed seconds for untimed recording UIs,
// reporting each second through onTick. Stop halts it; no tick fires
// after Stop.
type Stopwatch struct {
	interval time.Duration

	mu      sync.Mutex
	elapsed int
	stopped bool
	running bool
	stopCh  chan struct{}

	onTick func(elapsed int)
}

func NewStopwatch(interval time.Duration, onTick func(int)) *Stopwatch {
	if interval <= 0 {
		interval = time.Second
	}
	return &Stopwatch{
		interval: interval,
		stopCh:   make(chan struct{}),
		onTick:   onTick,
	}
}

func (s *Stopwatch) Start() {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.mu.Lock()
				if s.stopped {
					s.mu.Unlock()
					return
				}
				s.elapsed++
				elapsed := s.elapsed
				tick := s.onTick
				s.mu.Unlock()
				if tick != nil {
					tick(elapsed)
				}
			}
		}
	}()
}

// Elapsed returns the seconds counted so far.
func (s *Stopwatch) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Stop halts the stopwatch. Idempotent.
func (s *Stopwatch) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
}
