// Package fsm defines the agent connection lifecycle state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateCreated     State = "created"
	StateHandshaking State = "handshaking"
	StateOpen        State = "open"
	StateClosing     State = "closing"
	StateDisposed    State = "disposed"
)

const (
	EventRun         Event = "run"
	EventHandshakeOK Event = "handshake_ok"
	EventClose       Event = "close"
	EventDispose     Event = "dispose"
)

func Transition(current State, event Event) (State, error) {
	if event == EventDispose {
		if current == StateDisposed {
			return current, invalidTransition(current, event)
		}
		if !known(current) {
			return current, fmt.Errorf("unknown state %q", current)
		}
		return StateDisposed, nil
	}

	switch current {
	case StateCreated:
		switch event {
		case EventRun:
			return StateHandshaking, nil
		case EventClose:
			return StateClosing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateHandshaking:
		switch event {
		case EventHandshakeOK:
			return StateOpen, nil
		case EventClose:
			return StateClosing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateOpen:
		switch event {
		case EventClose:
			return StateClosing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateClosing, StateDisposed:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func known(state State) bool {
	switch state {
	case StateCreated, StateHandshaking, StateOpen, StateClosing, StateDisposed:
		return true
	default:
		return false
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
