package loop

import "sync/atomic"

type State int32

const (
	Initializing State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type stateValue struct {
	v atomic.Int32
}

func (s *stateValue) Load() State {
	return State(s.v.Load())
}

func (s *stateValue) Store(state State) {
	s.v.Store(int32(state))
}
