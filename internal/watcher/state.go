package watcher

// State is the tail loop's lifecycle stage.
type State int32

const (
	StateUnstarted State = iota
	StateInitializing
	StateSeeking
	StateStreaming
	StateReinitializing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateInitializing:
		return "initializing"
	case StateSeeking:
		return "seeking"
	case StateStreaming:
		return "streaming"
	case StateReinitializing:
		return "reinitializing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
