//go:build windows

package notifier

import "github.com/777genius/agent-toast/internal/lifecycle"

// New returns the WinRT presenter. It falls back to beeep per toast when
// the COM route fails.
func New(cb Callbacks, icon string) lifecycle.Presenter {
	return NewActionCenterPresenter(cb, icon)
}
