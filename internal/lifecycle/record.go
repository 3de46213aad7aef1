package lifecycle

import (
	"fmt"
	"time"

	"github.com/777genius/agent-toast/internal/daemon"
	"github.com/777genius/agent-toast/internal/desktop"
)

// AppTitle is shown for notifications that do not belong to a terminal.
const AppTitle = "agent-toast"

// Record is one notification as handed to the presenter.
type Record struct {
	ID          string
	Window      desktop.Handle
	Chain       []uint32
	Title       string
	Event       string
	EventLabel  string
	Message     string
	Source      daemon.Source
	Terminal    string
	AutoDismiss time.Duration
	Created     time.Time
	State       State
	Rect        desktop.Rect

	corner  string
	monitor string
	gen     uint64
	timer   Timer
}

// Target is what the window activator needs to bring the source forward.
func (r *Record) Target() desktop.Target {
	return desktop.Target{
		Handle:   r.Window,
		PID:      firstPID(r.Chain),
		Chain:    r.Chain,
		Title:    r.Title,
		Terminal: r.Terminal,
	}
}

func firstPID(chain []uint32) uint32 {
	if len(chain) == 0 {
		return 0
	}
	return chain[0]
}

var eventLabels = map[string]string{
	"task_complete":       "Task complete",
	"user_input_required": "Input required",
	"error":               "Error",
	"session_start":       "Session started",
	"session_end":         "Session ended",
	"subagent_start":      "Subagent started",
	"subagent_stop":       "Subagent finished",
	"update_available":    "Update available",
	"agent_turn_complete": "Turn complete",
}

// EventLabel returns the human label for an event kind. Unknown kinds are
// shown as sent.
func EventLabel(event string) string {
	if label, ok := eventLabels[event]; ok {
		return label
	}
	return event
}

// DisplayTitle picks the notification title. In "project" mode the title
// hint wins over the window title; "window" mode ignores the hint.
func DisplayTitle(mode string, req *daemon.NotifyRequest) string {
	if req.Source.Internal() {
		return AppTitle
	}
	if mode != "window" && req.TitleHint != "" {
		return req.TitleHint
	}
	if req.WindowTitle != "" {
		return req.WindowTitle
	}
	return fmt.Sprintf("PID %d", req.PID)
}

// fingerprint identifies request content for short-window dedupe.
func fingerprint(req *daemon.NotifyRequest) string {
	return fmt.Sprintf("%d\x00%s\x00%s\x00%s\x00%s", req.PID, req.Event, req.Message, req.TitleHint, req.Source)
}
