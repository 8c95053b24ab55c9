package circuitbreaker

type State int

const (
	// StateClosed - normal operation, the backend is attempted
	StateClosed State = iota
	// StateOpen - backend is skipped entirely until the timeout elapses
	StateOpen
	// StateHalfOpen - a limited number of probe attempts are let through
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
