package writer

import "sync/atomic"

// State is a writer's lifecycle state.
type State int32

const (
	StateCreated State = iota
	StateInitializing
	StateReady
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateInitializing:
		return "INITIALIZING"
	case StateReady:
		return "READY"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

type atomicState struct{ v atomic.Int32 }

func (a *atomicState) load() State     { return State(a.v.Load()) }
func (a *atomicState) store(s State)   { a.v.Store(int32(s)) }
func (a *atomicState) cas(old, new State) bool {
	return a.v.CompareAndSwap(int32(old), int32(new))
}
