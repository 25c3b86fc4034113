package phase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prepstation/capture-service/internal/audio"
	"github.com/prepstation/capture-service/internal/models"
	"github.com/prepstation/capture-service/internal/timer"
)

// Capturer is the capture engine surface the machine drives for
// speaking questions.
type Capturer interface {
	Start(ctx context.Context) error
	Stop() (models.AudioClip, error)
	Abort()
}

// Config shapes one machine instance for one rendered question.
type Config struct {
	// PrepSeconds > 0 enables the Preparing phase (unless the caller
	// drives preparation externally).
	PrepSeconds int
	// InputSeconds > 0 bounds the active-input phase; zero means
	// untimed input with a free-running elapsed counter.
	InputSeconds int
	// Speaking selects the Recording input state and wires capture.
	Speaking bool
	// ExternalPrep marks preparation as driven by the caller (for
	// example a countdown shared across a multi-part passage). The
	// internal preparation countdown is not started.
	ExternalPrep bool
	// TickInterval overrides the one-second timer tick. Tests use a
	// short interval.
	TickInterval time.Duration
}

// Callbacks are delivered sequentially; the machine never runs two
// side effects concurrently.
type Callbacks struct {
	OnPhase    func(State)
	OnPrepTick func(remaining int)
	OnTick     func(secondsRemainingOrElapsed int)
	// OnFinalize receives the captured clip for speaking questions,
	// or a zero clip for other types. err carries capture failures
	// including the empty-capture case.
	OnFinalize func(clip models.AudioClip, err error)
	// OnCaptureError reports a failed automatic capture start. The
	// machine stays in its pre-recording phase.
	OnCaptureError func(err error)
}

// Machine is the per-question phase controller. At most one instance
// is active per rendered question; Teardown releases every timer and
// the microphone.
type Machine struct {
	cfg      Config
	capturer Capturer
	cb       Callbacks
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	prepTimer *timer.Countdown
	inputCd   *timer.Countdown
	watch     *timer.Stopwatch
	finalized bool
	prepDone  bool
	tornDown  bool
	ctx       context.Context
}

func NewMachine(cfg Config, capturer Capturer, cb Callbacks, logger *slog.Logger) *Machine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Machine{
		cfg:      cfg,
		capturer: capturer,
		cb:       cb,
		logger:   logger,
	}
}

// State returns the current phase snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start enters the initial phase: Preparing when the question has a
// nonzero preparation window and no external countdown, otherwise the
// input state directly.
func (m *Machine) Start(ctx context.Context) {
	m.mu.Lock()
	if m.tornDown || m.state != "" {
		m.mu.Unlock()
		return
	}
	m.ctx = ctx

	if m.cfg.ExternalPrep || m.cfg.PrepSeconds > 0 {
		m.state = StatePreparing
		m.mu.Unlock()
		m.notifyPhase(StatePreparing)

		if !m.cfg.ExternalPrep {
			m.startPrepCountdown()
		}
		return
	}
	m.mu.Unlock()

	m.enterInput()
}

func (m *Machine) startPrepCountdown() {
	m.mu.Lock()
	if m.tornDown {
		m.mu.Unlock()
		return
	}
	m.prepTimer = timer.NewCountdown(m.cfg.PrepSeconds, m.cfg.TickInterval,
		func(remaining int) {
			if m.cb.OnPrepTick != nil {
				m.cb.OnPrepTick(remaining)
			}
		},
		func() { m.completePreparation() })
	cd := m.prepTimer
	m.mu.Unlock()
	cd.Start()
}

// completePreparation transitions Preparing → input exactly once,
// whether driven by the internal countdown or an external one.
func (m *Machine) completePreparation() {
	m.mu.Lock()
	if m.tornDown || m.prepDone || m.state != StatePreparing {
		m.mu.Unlock()
		return
	}
	m.prepDone = true
	if m.prepTimer != nil {
		m.prepTimer.Stop()
		m.prepTimer = nil
	}
	m.mu.Unlock()

	m.enterInput()
}

// ExternalPrepUpdate feeds an externally driven preparation countdown.
// A zero remaining value completes preparation exactly once. A nil
// value means the external countdown was withdrawn mid-preparation:
// the machine abandons preparation without starting input. Product has
// not confirmed whether withdrawal should instead pause or auto-start;
// the halt matches observed behavior.
func (m *Machine) ExternalPrepUpdate(remaining *int) {
	m.mu.Lock()
	if m.tornDown || m.state != StatePreparing {
		m.mu.Unlock()
		return
	}
	if remaining == nil {
		m.mu.Unlock()
		m.logger.Warn("external preparation countdown withdrawn; preparation halted")
		return
	}
	r := *remaining
	m.mu.Unlock()

	if m.cb.OnPrepTick != nil {
		m.cb.OnPrepTick(r)
	}
	if r <= 0 {
		m.completePreparation()
	}
}

// enterInput moves to the active-input phase. For speaking questions
// capture begins automatically; an acquisition failure keeps the
// machine in its current phase and reports through OnCaptureError.
func (m *Machine) enterInput() {
	m.mu.Lock()
	if m.tornDown {
		m.mu.Unlock()
		return
	}
	next, err := Transition(StatePreparing, EventPrepDone, m.cfg.Speaking)
	if err != nil {
		m.mu.Unlock()
		return
	}
	ctx := m.ctx
	m.mu.Unlock()

	if m.cfg.Speaking {
		if err := m.capturer.Start(ctx); err != nil {
			m.logger.Warn("automatic capture start failed", "error", err)
			if m.cb.OnCaptureError != nil {
				m.cb.OnCaptureError(err)
			}
			return
		}
	}

	m.mu.Lock()
	if m.tornDown {
		// Teardown ran while the microphone was being acquired; it saw
		// a pre-recording state and could not release the capture, so
		// release it here and never enter the input phase.
		m.mu.Unlock()
		if m.cfg.Speaking {
			m.capturer.Abort()
		}
		return
	}
	m.state = next
	m.mu.Unlock()
	m.notifyPhase(next)

	m.startInputTimers()
}

func (m *Machine) startInputTimers() {
	m.mu.Lock()
	if m.tornDown {
		m.mu.Unlock()
		return
	}
	if m.cfg.InputSeconds > 0 {
		m.inputCd = timer.NewCountdown(m.cfg.InputSeconds, m.cfg.TickInterval,
			func(remaining int) {
				if m.cb.OnTick != nil {
					m.cb.OnTick(remaining)
				}
			},
			func() { m.finalize(EventTimeout) })
		cd := m.inputCd
		m.mu.Unlock()
		cd.Start()
		return
	}
	m.watch = timer.NewStopwatch(m.cfg.TickInterval, func(elapsed int) {
		if m.cb.OnTick != nil {
			m.cb.OnTick(elapsed)
		}
	})
	w := m.watch
	m.mu.Unlock()
	w.Start()
}

// Stop is the explicit user stop. It converges with the countdown
// timeout on exactly one finalize; a re-entrant stop is a no-op.
func (m *Machine) Stop() {
	m.finalize(EventStop)
}

func (m *Machine) finalize(event Event) {
	m.mu.Lock()
	if m.tornDown || m.finalized {
		m.mu.Unlock()
		return
	}
	cur := m.state
	next, err := Transition(cur, event, m.cfg.Speaking)
	if err != nil {
		m.mu.Unlock()
		return
	}
	m.finalized = true
	m.state = next
	m.stopTimersLocked()
	m.mu.Unlock()

	var clip models.AudioClip
	var capErr error
	if m.cfg.Speaking {
		clip, capErr = m.capturer.Stop()
	}

	m.notifyPhase(next)
	if m.cb.OnFinalize != nil {
		m.cb.OnFinalize(clip, capErr)
	}
}

// Reset discards the captured state for a re-record: back to
// Preparing when the question has a preparation phase, otherwise
// directly to the input state.
func (m *Machine) Reset() {
	m.mu.Lock()
	if m.tornDown {
		m.mu.Unlock()
		return
	}
	m.stopTimersLocked()
	if m.cfg.Speaking && !m.finalized && m.state == StateRecording {
		m.capturer.Abort()
	}
	m.finalized = false
	m.prepDone = false
	m.state = ""
	ctx := m.ctx
	m.mu.Unlock()

	m.Start(ctx)
}

// Teardown cancels all timers and releases any in-progress capture.
// Synchronous from the caller's perspective; safe to call twice.
func (m *Machine) Teardown() {
	m.mu.Lock()
	if m.tornDown {
		m.mu.Unlock()
		return
	}
	m.tornDown = true
	wasRecording := m.state == StateRecording && !m.finalized
	m.stopTimersLocked()
	m.mu.Unlock()

	if wasRecording {
		m.capturer.Abort()
	}
}

func (m *Machine) stopTimersLocked() {
	if m.prepTimer != nil {
		m.prepTimer.Stop()
		m.prepTimer = nil
	}
	if m.inputCd != nil {
		m.inputCd.Stop()
		m.inputCd = nil
	}
	if m.watch != nil {
		m.watch.Stop()
		m.watch = nil
	}
}

func (m *Machine) notifyPhase(s State) {
	if m.cb.OnPhase != nil {
		m.cb.OnPhase(s)
	}
}

var _ Capturer = (*audio.Engine)(nil)
