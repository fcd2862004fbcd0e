package gpib

import (
	"errors"
	"sync/atomic"
)

// State represents the lifecycle stage of a Session.
type State uint32

// Session states.
const (
	// UnopenedState indicates that no device descriptor has been acquired yet.
	UnopenedState State = iota
	// OpenState indicates that the device is opened but not cleared.
	OpenState
	// ReadyState indicates that the device is cleared and accepts transactions.
	ReadyState
	// BusyState indicates that a transaction is in flight.
	BusyState
	// OfflineState is terminal: the descriptor was taken offline and the session cannot be reused.
	OfflineState
)

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case UnopenedState:
		return "unopened"
	case OpenState:
		return "open"
	case ReadyState:
		return "ready"
	case BusyState:
		return "busy"
	case OfflineState:
		return "offline"
	default:
		return "unknown"
	}
}

// IsReady returns if the state accepts transactions.
func (s State) IsReady() bool { return s == ReadyState }

// IsOffline returns if the state is the terminal offline state.
func (s State) IsOffline() bool { return s == OfflineState }

// StateChangeHandler is invoked after every session state change.
//
// Note: the handler is invoked synchronously while the session lock is held;
// it must not call back into the session.
type StateChangeHandler func(s *Session, prevState State, newState State)

// event drives the session state machine.
type event uint8

const (
	evOpened event = iota
	evCleared
	evBegin
	evEnd
	evFail
	evClose
)

func (e event) String() string {
	switch e {
	case evOpened:
		return "opened"
	case evCleared:
		return "cleared"
	case evBegin:
		return "begin"
	case evEnd:
		return "end"
	case evFail:
		return "fail"
	case evClose:
		return "close"
	default:
		return "unknown"
	}
}

// errInvalidTransition is returned by transition when ev is not accepted in state cur.
var errInvalidTransition = errors.New("gpib: invalid state transition")

// transition is the session state machine. It returns the state reached from
// cur on ev. Failure and close events lead to OfflineState from every state,
// and OfflineState absorbs every event.
func transition(cur State, ev event) (State, error) {
	if cur == OfflineState {
		if ev == evClose || ev == evFail {
			return OfflineState, nil
		}

		return cur, errInvalidTransition
	}

	switch ev {
	case evOpened:
		if cur == UnopenedState {
			return OpenState, nil
		}
	case evCleared:
		if cur == OpenState {
			return ReadyState, nil
		}
	case evBegin:
		if cur == ReadyState {
			return BusyState, nil
		}
	case evEnd:
		if cur == BusyState {
			return ReadyState, nil
		}
	case evFail, evClose:
		return OfflineState, nil
	}

	return cur, errInvalidTransition
}

// atomicState stores a State so it can be read without the session lock.
type atomicState struct {
	state atomic.Uint32
}

func (st *atomicState) Get() State { return State(st.state.Load()) }

func (st *atomicState) Set(state State) { st.state.Store(uint32(state)) }
