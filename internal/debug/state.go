package debug

// State represents the current state of a debug session.
//
// Legal transitions:
//
//	Idle         -> Connecting          (connect)
//	Connecting   -> Connected | Error
//	Connected    -> Running             (start)
//	Running      -> Paused              (pause, breakpoint hit, *stopped)
//	Running      -> Disconnected        (stop)
//	Paused       -> Running             (continue)
//	Paused       -> Stepping            (step over/into/out)
//	Stepping     -> Paused              (step completion)
//	any non-Idle -> Disconnected        (disconnect)
//	any          -> Error               (transport failure)
type State int

const (
	// StateIdle is the initial state before any connection.
	StateIdle State = iota
	// StateConnecting is while a transport is being established.
	StateConnecting
	// StateConnected is after transport setup, before execution starts.
	StateConnected
	// StateRunning is while the target is executing.
	StateRunning
	// StatePaused is while the target is stopped and inspectable.
	StatePaused
	// StateStepping is while a step command is in flight.
	StateStepping
	// StateDisconnected is after the session ended.
	StateDisconnected
	// StateError is after a connection or transport failure.
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStepping:
		return "stepping"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// syncable reports whether breakpoint changes should be pushed to the
// debugger in this state.
func (s State) syncable() bool {
	return s == StateConnected || s == StatePaused || s == StateRunning
}
