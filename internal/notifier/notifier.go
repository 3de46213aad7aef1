// ABOUTME: Presents notification records through the desktop notification service.
// ABOUTME: beeep everywhere; on Linux a D-Bus presenter adds click-to-view and close callbacks.
package notifier

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/777genius/agent-toast/internal/desktop"
	"github.com/777genius/agent-toast/internal/lifecycle"
	"github.com/777genius/agent-toast/internal/logging"
)

// AppName is registered with the OS notification service.
const AppName = "agent-toast"

// Callbacks are the two operations a notification can trigger.
type Callbacks interface {
	Close(id string)
	Activate(window desktop.Handle, id string)
}

// Summary is the notification headline: "<event label> · <title>".
func Summary(r lifecycle.Record) string {
	if r.Title == "" || r.Title == lifecycle.AppTitle {
		return r.EventLabel
	}
	return fmt.Sprintf("%s · %s", r.EventLabel, r.Title)
}

// Body is the message, or the event label when none was sent.
func Body(r lifecycle.Record) string {
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		return r.EventLabel
	}
	return msg
}

// notifyFunc is replaced in tests.
var notifyFunc = beeep.Notify

// ToastPresenter shows fire-and-forget notifications through beeep. The OS
// does not report clicks back, so closing is left to the lifecycle timers
// and focus tracking.
type ToastPresenter struct {
	Icon string

	mu sync.Mutex
}

func NewToastPresenter(icon string) *ToastPresenter {
	return &ToastPresenter{Icon: icon}
}

func (p *ToastPresenter) Show(r lifecycle.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Windows keeps one registry entry per AppName forever, so use a fixed
	// name there. Elsewhere a unique name keeps notifications from
	// replacing each other.
	original := beeep.AppName
	if runtime.GOOS == "windows" {
		beeep.AppName = AppName
	} else {
		beeep.AppName = fmt.Sprintf("%s-%d", AppName, time.Now().UnixNano())
	}
	defer func() { beeep.AppName = original }()

	if err := notifyFunc(Summary(r), Body(r), p.Icon); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	logging.Debug("%s shown via beeep at %+v", r.ID, r.Rect)
	return nil
}

// Move is a no-op; the notification service owns placement.
func (p *ToastPresenter) Move(string, desktop.Rect) {}

func (p *ToastPresenter) Hide(id string) {
	logging.Debug("%s hidden", id)
}
