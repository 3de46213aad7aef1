//go:build !linux && !windows

package notifier

import "github.com/777genius/agent-toast/internal/lifecycle"

// New returns the beeep presenter. Clicks are not reported back on this
// platform.
func New(_ Callbacks, icon string) lifecycle.Presenter {
	return NewToastPresenter(icon)
}
