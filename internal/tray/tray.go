// ABOUTME: Tray icon for the running server with Settings and Quit entries.
// ABOUTME: Runs on the systray external loop so the event loop stays ours.
package tray

import (
	"context"
	"fmt"
	"sync"

	"fyne.io/systray"

	"github.com/777genius/agent-toast/internal/errorhandler"
	"github.com/777genius/agent-toast/internal/logging"
)

const tooltip = "agent-toast"

// Menu holds the actions behind the tray entries. Nil actions are ignored.
type Menu struct {
	OnSettings func()
	OnQuit     func()
}

type Tray struct {
	menu   Menu
	end    func()
	cancel context.CancelFunc

	mu     sync.Mutex
	status *systray.MenuItem
}

// Start shows the tray icon. Stop removes it.
func Start(menu Menu) *Tray {
	t := &Tray{menu: menu}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	start, end := systray.RunWithExternalLoop(func() {
		systray.SetIcon(iconData)
		systray.SetTooltip(tooltip)

		status := systray.AddMenuItem("No notifications", "Notifications on screen")
		status.Disable()
		t.mu.Lock()
		t.status = status
		t.mu.Unlock()

		systray.AddSeparator()
		settings := systray.AddMenuItem("Settings...", "Open the settings file")
		quit := systray.AddMenuItem("Quit", "Stop agent-toast")

		errorhandler.SafeGo(func() {
			dispatch(ctx, settings.ClickedCh, quit.ClickedCh, menu)
		})
	}, func() {
		logging.Debug("tray exited")
	})
	t.end = end
	start()
	return t
}

// dispatch runs menu actions until ctx ends or Quit is chosen.
func dispatch(ctx context.Context, settings, quit <-chan struct{}, menu Menu) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-settings:
			if menu.OnSettings != nil {
				menu.OnSettings()
			}
		case <-quit:
			if menu.OnQuit != nil {
				menu.OnQuit()
			}
			return
		}
	}
}

// SetShown updates the status entry with the number of notifications on screen.
func (t *Tray) SetShown(n int) {
	t.mu.Lock()
	status := t.status
	t.mu.Unlock()
	if status == nil {
		return
	}
	status.SetTitle(statusTitle(n))
	systray.SetTooltip(fmt.Sprintf("%s: %s", tooltip, statusTitle(n)))
}

func statusTitle(n int) string {
	switch n {
	case 0:
		return "No notifications"
	case 1:
		return "1 notification"
	default:
		return fmt.Sprintf("%d notifications", n)
	}
}

func (t *Tray) Stop() {
	t.cancel()
	if t.end != nil {
		t.end()
	}
}
