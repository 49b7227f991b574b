package session

// State of a session attempt.
type State int32

// States. Error is terminal for an attempt; Start may be called again.
const (
	Idle State = iota
	Starting
	Active
	Error
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Error:
		return "error"
	default:
		return "idle"
	}
}
