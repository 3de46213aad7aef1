// ABOUTME: Windows toast presenter built on the WinRT notification API via go-toast.
// ABOUTME: Clicks and buttons come back through the COM activation callback as Activate and Close.
package notifier

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"sync"

	"git.sr.ht/~jackmordaunt/go-toast"
	"git.sr.ht/~jackmordaunt/go-toast/tmpl"
	"git.sr.ht/~jackmordaunt/go-toast/wintoast"

	"github.com/777genius/agent-toast/internal/desktop"
	"github.com/777genius/agent-toast/internal/errorhandler"
	"github.com/777genius/agent-toast/internal/lifecycle"
	"github.com/777genius/agent-toast/internal/logging"
)

// Activation arguments carried by the toast body and its buttons.
const (
	argActivate = "activate:"
	argDismiss  = "dismiss:"
)

// Replaced in tests. pushXML goes through COM only: the powershell route
// cannot call back, so it is left to the beeep fallback.
var (
	pushXML               = func(xml string) error { return wintoast.Push(xml) }
	registerApp           = toast.SetAppData
	setActivationCallback = toast.SetActivationCallback
	clearHistory          = clearAppHistory
)

// ActionCenterPresenter shows WinRT toasts tagged with the record id in
// their activation arguments. Windows cannot remove a single toast pushed
// this way, so the app's Action Center entries are cleared once the last
// shown record is hidden.
type ActionCenterPresenter struct {
	cb       Callbacks
	icon     string
	fallback *ToastPresenter

	mu    sync.Mutex
	shown map[string]bool
}

func NewActionCenterPresenter(cb Callbacks, icon string) *ActionCenterPresenter {
	p := &ActionCenterPresenter{
		cb:       cb,
		icon:     icon,
		fallback: NewToastPresenter(icon),
		shown:    make(map[string]bool),
	}
	if err := registerApp(toast.AppData{AppID: AppName, IconPath: icon}); err != nil {
		logging.Warn("register %s for toast activation: %v", AppName, err)
	}
	setActivationCallback(p.onActivated)
	return p
}

// cdata keeps message text from terminating the CDATA section it is placed in.
func cdata(s string) string {
	return strings.ReplaceAll(s, "]]>", "]] >")
}

func (p *ActionCenterPresenter) build(r lifecycle.Record) (string, error) {
	n := toast.Notification{
		AppID:               AppName,
		Title:               cdata(Summary(r)),
		Body:                cdata(Body(r)),
		Icon:                html.EscapeString(p.icon),
		ActivationType:      toast.Foreground,
		ActivationArguments: argActivate + r.ID,
		Duration:            toast.Short,
		// lifecycle plays the configured sound
		Audio: toast.Silent,
	}
	if r.Window != 0 || len(r.Chain) > 0 {
		n.Actions = []toast.Action{
			{Type: toast.Foreground, Content: "View", Arguments: argActivate + r.ID},
			{Type: toast.Foreground, Content: "Dismiss", Arguments: argDismiss + r.ID},
		}
	}

	var out bytes.Buffer
	if err := tmpl.XMLTemplate.Execute(&out, &n); err != nil {
		return "", fmt.Errorf("render toast: %w", err)
	}
	return out.String(), nil
}

func (p *ActionCenterPresenter) Show(r lifecycle.Record) error {
	xml, err := p.build(r)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := pushXML(xml); err != nil {
		logging.Warn("%s: WinRT toast failed, click-to-view disabled: %v", r.ID, err)
		if err := p.fallback.Show(r); err != nil {
			return err
		}
	}
	p.shown[r.ID] = true
	logging.Info("%s sent: window=%s", r.ID, r.Window)
	return nil
}

// Move is a no-op; the shell owns toast placement.
func (p *ActionCenterPresenter) Move(string, desktop.Rect) {}

func (p *ActionCenterPresenter) Hide(id string) {
	p.mu.Lock()
	_, ok := p.shown[id]
	delete(p.shown, id)
	p.mu.Unlock()
	if !ok {
		return
	}

	clearFn := clearHistory
	errorhandler.SafeGo(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		// a toast shown meanwhile must survive
		if len(p.shown) > 0 {
			return
		}
		if err := clearFn(AppName); err != nil {
			logging.Debug("clear toast history: %v", err)
		}
	})
}

func (p *ActionCenterPresenter) onActivated(args string, _ []toast.UserData) {
	logging.Debug("toast activated: %q", args)
	switch {
	case strings.HasPrefix(args, argActivate):
		p.cb.Activate(0, strings.TrimPrefix(args, argActivate))
	case strings.HasPrefix(args, argDismiss):
		p.cb.Close(strings.TrimPrefix(args, argDismiss))
	}
}

// Close detaches the activation callback and clears what is left on screen.
func (p *ActionCenterPresenter) Close() error {
	setActivationCallback(func(string, []toast.UserData) {})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = make(map[string]bool)
	return clearHistory(AppName)
}
