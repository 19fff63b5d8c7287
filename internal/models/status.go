package models

// LifecycleStatus is the state of a project in the orchestrator
type LifecycleStatus string

const (
	StatusIdle     LifecycleStatus = "idle"
	StatusWatching LifecycleStatus = "watching"
	StatusSyncing  LifecycleStatus = "syncing"
	StatusError    LifecycleStatus = "error"
)

var allowedTransitions = map[LifecycleStatus][]LifecycleStatus{
	StatusIdle:     {StatusWatching, StatusError},
	StatusWatching: {StatusSyncing, StatusError, StatusIdle},
	StatusSyncing:  {StatusWatching, StatusError},
	StatusError:    {StatusWatching, StatusSyncing, StatusIdle},
}

// Valid reports whether s is a known status
func (s LifecycleStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether the state machine allows moving from s to next.
// Staying in the same state is always allowed.
func (s LifecycleStatus) CanTransition(next LifecycleStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
