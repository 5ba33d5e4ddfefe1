package client

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingConnected
	StateSubscribing
	StateReady
	StateClosing
	StateClosed
	StateFailed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateAwaitingConnected:
		return "AWAITING_CONNECTED"
	case StateSubscribing:
		return "SUBSCRIBING"
	case StateReady:
		return "READY"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// canConnect reports whether Connect may start from s.
func (s State) canConnect() bool {
	return s == StateIdle || s == StateClosed || s == StateFailed
}
