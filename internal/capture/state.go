package capture

// State is the lifecycle state of the capture facade
type State int32

const (
	StateUninitialized State = iota
	StateIdle
	StateCapturing
	StatePaused
	StateStopped
	StateError
)

// String returns the lowercase state name
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether the engine is running, paused or not
func (s State) Active() bool {
	return s == StateCapturing || s == StatePaused
}
