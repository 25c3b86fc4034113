// Package phase sequences a question through preparation, active
// input, and completion, driving the countdown timers and — for
// speaking questions — the audio capture engine.
package phase

import "fmt"

type State string

type Event string

const (
	// StatePreparing is the timed reading window before input begins.
	StatePreparing State = "preparing"
	// StateRecording is the active-input phase for speaking questions.
	StateRecording State = "recording"
	// StateAwaitingInput is the active-input phase for typed or
	// selected answers.
	StateAwaitingInput State = "awaiting_input"
	StateCompleted     State = "completed"
)

const (
	// EventPrepDone fires when the preparation countdown reaches zero
	// or an external countdown completes.
	EventPrepDone Event = "prep_done"
	// EventStop is an explicit user stop during active input.
	EventStop Event = "stop"
	// EventTimeout fires when the input countdown reaches zero.
	EventTimeout Event = "timeout"
	EventReset   Event = "reset"
)

// Transition applies one event to a state. The speaking flag selects
// which active-input state preparation resolves to.
func Transition(current State, event Event, speaking bool) (State, error) {
	inputState := StateAwaitingInput
	if speaking {
		inputState = StateRecording
	}

	switch current {
	case StatePreparing:
		switch event {
		case EventPrepDone:
			return inputState, nil
		case EventReset:
			return StatePreparing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording, StateAwaitingInput:
		switch event {
		case EventStop, EventTimeout:
			return StateCompleted, nil
		case EventReset:
			return StatePreparing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCompleted:
		switch event {
		case EventReset:
			return StatePreparing, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
