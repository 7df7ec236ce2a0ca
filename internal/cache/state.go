package cache

// State is a step of the cache lifecycle.
type State int32

const (
	// StateUninitialized: no cache directory bound
	StateUninitialized State = iota
	// StateOpening: opening or recovering the backing store
	StateOpening
	// StateReadyEmpty: store open, no completed build yet
	StateReadyEmpty
	// StateBuilding: a rebuild is writing to the store
	StateBuilding
	// StateReady: at least one build has been committed
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOpening:
		return "opening"
	case StateReadyEmpty:
		return "ready_empty"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}
