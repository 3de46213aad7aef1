// ABOUTME: Panic containment for background goroutines.
package errorhandler

import (
	"runtime/debug"

	"github.com/777genius/agent-toast/internal/logging"
)

// SafeGo runs fn in a new goroutine and logs instead of crashing on panic.
func SafeGo(fn func()) {
	go Recover(fn)
}

// Recover runs fn synchronously and logs a recovered panic. It reports
// whether fn completed without panicking.
func Recover(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("recovered panic: %v\n%s", r, debug.Stack())
			ok = false
		}
	}()
	fn()
	return true
}
