package lifecycle

// State is the lifecycle position of a notification. Values only ever
// increase for a given record.
type State int

const (
	StatePending State = iota
	StateShown
	// StateSkipped means the source was already focused at creation.
	StateSkipped
	// StateFailed means the presenter could not display the record.
	StateFailed
	StateDismissedManual
	StateDismissedAutoTimer
	StateDismissedFocusReturn
	StateDismissedActivated
)

var stateNames = map[State]string{
	StatePending:              "pending",
	StateShown:                "shown",
	StateSkipped:              "skipped",
	StateFailed:               "failed",
	StateDismissedManual:      "dismissed_manual",
	StateDismissedAutoTimer:   "dismissed_auto_timer",
	StateDismissedFocusReturn: "dismissed_focus_return",
	StateDismissedActivated:   "dismissed_activated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateSkipped
}

// canTransition enforces Pending -> Shown -> dismissed, and Pending -> skipped/failed.
func canTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateShown || to == StateSkipped || to == StateFailed
	case StateShown:
		return to >= StateDismissedManual
	default:
		return false
	}
}
