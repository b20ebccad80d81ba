package session

type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateLive
	StateEnding
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateLive:
		return "live"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	}
	return "unknown"
}
