package lifecycle

// State is a lifecycle state of a component.
type State int

const (
	StateNew State = iota
	StateInitializing
	StateInitialized
	StateStartingPrep
	StateStarting
	StateStarted
	StateStoppingPrep
	StateStopping
	StateStopped
	StateDestroying
	StateDestroyed
	StateFailed
)

// Lifecycle event types. State entries fire the event returned by
// State.Event; the remaining types are fired explicitly by components.
const (
	EventBeforeInit     = "before_init"
	EventAfterInit      = "after_init"
	EventStart          = "start"
	EventBeforeStart    = "before_start"
	EventAfterStart     = "after_start"
	EventStop           = "stop"
	EventBeforeStop     = "before_stop"
	EventAfterStop      = "after_stop"
	EventAfterDestroy   = "after_destroy"
	EventBeforeDestroy  = "before_destroy"
	EventPeriodic       = "periodic"
	EventConfigureStart = "configure_start"
	EventConfigureStop  = "configure_stop"
)

var stateNames = [...]string{
	StateNew:          "NEW",
	StateInitializing: "INITIALIZING",
	StateInitialized:  "INITIALIZED",
	StateStartingPrep: "STARTING_PREP",
	StateStarting:     "STARTING",
	StateStarted:      "STARTED",
	StateStoppingPrep: "STOPPING_PREP",
	StateStopping:     "STOPPING",
	StateStopped:      "STOPPED",
	StateDestroying:   "DESTROYING",
	StateDestroyed:    "DESTROYED",
	StateFailed:       "FAILED",
}

var stateEvents = [...]string{
	StateInitializing: EventBeforeInit,
	StateInitialized:  EventAfterInit,
	StateStartingPrep: EventBeforeStart,
	StateStarting:     EventStart,
	StateStarted:      EventAfterStart,
	StateStoppingPrep: EventBeforeStop,
	StateStopping:     EventStop,
	StateStopped:      EventAfterStop,
	StateDestroying:   EventBeforeDestroy,
	StateDestroyed:    EventAfterDestroy,
	StateFailed:       "",
}

// String returns the upper-case state name, or "UNKNOWN".
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Event returns the event fired on entry to s. NEW and FAILED fire nothing.
func (s State) Event() string {
	if s <= StateNew || int(s) >= len(stateEvents) {
		return ""
	}
	return stateEvents[s]
}

// Available reports whether a component in this state accepts work.
func (s State) Available() bool {
	return s == StateStarting || s == StateStarted || s == StateStoppingPrep
}

// Valid reports whether s is a member of the enumeration.
func (s State) Valid() bool {
	return s >= StateNew && s <= StateFailed
}
