//go:build linux

package notifier

import (
	"fmt"
	"sync"

	"github.com/esiqveland/notify"
	"github.com/godbus/dbus/v5"

	"github.com/777genius/agent-toast/internal/desktop"
	"github.com/777genius/agent-toast/internal/lifecycle"
	"github.com/777genius/agent-toast/internal/logging"
)

// actionView is the freedesktop action invoked by clicking the body.
const actionView = "default"

type busNotifier interface {
	SendNotification(n notify.Notification) (uint32, error)
	CloseNotification(id uint32) (bool, error)
	Close() error
}

// DBusPresenter talks to org.freedesktop.Notifications directly so clicks
// and user dismissals come back as Activate and Close.
type DBusPresenter struct {
	cb   Callbacks
	conn *dbus.Conn
	bus  busNotifier
	icon string

	mu     sync.Mutex
	byBus  map[uint32]string
	byID   map[string]uint32
	hiding map[uint32]bool
}

func newDBusPresenter(cb Callbacks, icon string) *DBusPresenter {
	return &DBusPresenter{
		cb:     cb,
		icon:   icon,
		byBus:  make(map[uint32]string),
		byID:   make(map[string]uint32),
		hiding: make(map[uint32]bool),
	}
}

// NewDBusPresenter connects to the session bus.
func NewDBusPresenter(cb Callbacks, icon string) (*DBusPresenter, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to D-Bus session bus: %w", err)
	}

	p := newDBusPresenter(cb, icon)
	p.conn = conn
	bus, err := notify.New(conn,
		notify.WithOnAction(p.onActionInvoked),
		notify.WithOnClosed(p.onNotificationClosed),
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}
	p.bus = bus
	return p, nil
}

// New returns the D-Bus presenter, or beeep when no session bus is reachable.
func New(cb Callbacks, icon string) lifecycle.Presenter {
	p, err := NewDBusPresenter(cb, icon)
	if err != nil {
		logging.Warn("D-Bus notifications unavailable, click-to-view disabled: %v", err)
		return NewToastPresenter(icon)
	}
	return p
}

func (p *DBusPresenter) Show(r lifecycle.Record) error {
	n := notify.Notification{
		AppName: AppName,
		AppIcon: p.icon,
		Summary: Summary(r),
		Body:    Body(r),
		// lifecycle timers own dismissal
		ExpireTimeout: 0,
	}
	if r.Window != 0 || len(r.Chain) > 0 {
		n.Actions = []notify.Action{{Key: actionView, Label: "View"}}
	}

	busID, err := p.bus.SendNotification(n)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	p.mu.Lock()
	p.byBus[busID] = r.ID
	p.byID[r.ID] = busID
	p.mu.Unlock()

	logging.Info("%s sent: bus id=%d window=%s", r.ID, busID, r.Window)
	return nil
}

// Move is a no-op; the notification server owns placement.
func (p *DBusPresenter) Move(string, desktop.Rect) {}

func (p *DBusPresenter) Hide(id string) {
	p.mu.Lock()
	busID, ok := p.byID[id]
	if ok {
		delete(p.byID, id)
		delete(p.byBus, busID)
		p.hiding[busID] = true
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	if _, err := p.bus.CloseNotification(busID); err != nil {
		logging.Debug("close notification %d: %v", busID, err)
	}
}

func (p *DBusPresenter) lookup(busID uint32) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byBus[busID]
	return id, ok
}

func (p *DBusPresenter) onActionInvoked(sig *notify.ActionInvokedSignal) {
	logging.Debug("ActionInvoked: ID=%d, Action=%s", sig.ID, sig.ActionKey)
	if sig.ActionKey != actionView {
		return
	}
	id, ok := p.lookup(sig.ID)
	if !ok {
		logging.Warn("no notification for bus id %d", sig.ID)
		return
	}
	p.cb.Activate(0, id)
}

func (p *DBusPresenter) onNotificationClosed(sig *notify.NotificationClosedSignal) {
	p.mu.Lock()
	if p.hiding[sig.ID] {
		delete(p.hiding, sig.ID)
		p.mu.Unlock()
		return
	}
	id, ok := p.byBus[sig.ID]
	p.mu.Unlock()
	if !ok {
		return
	}
	// the server closes the bubble after an action too; Close is idempotent
	p.cb.Close(id)
}

// Close releases the bus connection.
func (p *DBusPresenter) Close() error {
	if p.bus != nil {
		p.bus.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
