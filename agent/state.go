package agent

import "fmt"

// State is a ConnectionSession's position in the deployment lifecycle.
type State int

const (
	Disconnected State = iota
	Connected
	Deploying
	AwaitingAck
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Deploying:
		return "deploying"
	case AwaitingAck:
		return "awaiting_ack"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// EventKind drives the state machine.
type EventKind string

const (
	EventConnect        EventKind = "connect"
	EventConnectError   EventKind = "connect_error"
	EventPipelineFailed EventKind = "pipeline_failed"
	EventStrategyReady  EventKind = "strategy_ready"
	EventPayloadSent    EventKind = "payload_sent"
	EventAckSuccess     EventKind = "ack_success"
	EventAckFailure     EventKind = "ack_failure"
	EventAckTimeout     EventKind = "ack_timeout"
	EventDisconnect     EventKind = "disconnect"
	EventFault          EventKind = "fault"
)

// transitions lists every accepted (state, event) pair. There is no retry
// edge: every failure leads straight to Closed.
var transitions = map[State]map[EventKind]State{
	Disconnected: {
		EventConnect:      Connected,
		EventConnectError: Closed,
		EventFault:        Closed,
	},
	Connected: {
		EventStrategyReady:  Deploying,
		EventPipelineFailed: Closed,
		EventDisconnect:     Closed,
		EventFault:          Closed,
	},
	Deploying: {
		EventPayloadSent: AwaitingAck,
		EventDisconnect:  Closed,
		EventFault:       Closed,
	},
	AwaitingAck: {
		EventAckSuccess: Closed,
		EventAckFailure: Closed,
		EventAckTimeout: Closed,
		EventDisconnect: Closed,
		EventFault:      Closed,
	},
}

// Transition returns the state reached from s on ev. Unlisted pairs return
// ErrUnexpectedEvent and s unchanged.
func Transition(s State, ev EventKind) (State, error) {
	next, ok := transitions[s][ev]
	if !ok {
		return s, fmt.Errorf("%w: %s in state %s", ErrUnexpectedEvent, ev, s)
	}
	return next, nil
}

// Accepts reports whether ev is legal in state s.
func Accepts(s State, ev EventKind) bool {
	_, ok := transitions[s][ev]
	return ok
}
