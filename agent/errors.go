package agent

import "errors"

var (
	ErrUnexpectedEvent    = errors.New("unexpected event")
	ErrAlreadyRun         = errors.New("agent already ran; create a new agent per attempt")
	ErrNoValidStrategy    = errors.New("no valid strategy")
	ErrTransport          = errors.New("transport error")
	ErrDeploymentRejected = errors.New("deployment rejected")
	ErrAckTimeout         = errors.New("acknowledgment timed out")
	ErrDisconnected       = errors.New("connection lost")
)
