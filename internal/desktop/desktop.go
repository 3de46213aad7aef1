// ABOUTME: Operating-system window bindings shared by the resolver, focus monitor and placement.
// ABOUTME: Platform files provide enumeration, foreground probing, activation and monitor data.
package desktop

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by bindings that have no implementation on the
// running platform. Callers degrade instead of failing.
var ErrUnsupported = errors.New("desktop: not supported on this platform")

// ErrStaleWindow means the target window no longer exists.
var ErrStaleWindow = errors.New("desktop: window no longer exists")

// Handle identifies a top-level window. Zero means "no window".
type Handle uint64

func (h Handle) String() string {
	return fmt.Sprintf("0x%x", uint64(h))
}

// Window describes one top-level window.
type Window struct {
	Handle  Handle
	PID     uint32
	Title   string
	Class   string
	Visible bool
	Tool    bool
}

// Candidate reports whether the window may stand for its process: visible,
// titled and not a tool/utility window.
func (w Window) Candidate() bool {
	return w.Visible && w.Title != "" && !w.Tool
}

// FocusEvent is the new foreground window and the process that owns it.
type FocusEvent struct {
	Window Handle
	PID    uint32
}

// Target is everything known about a window to bring forward.
type Target struct {
	Handle   Handle
	PID      uint32
	Chain    []uint32
	Title    string
	Terminal string
}

// Rect is a screen rectangle in physical pixels.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) Right() int  { return r.X + r.W }
func (r Rect) Bottom() int { return r.Y + r.H }

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// Monitor is a display with its usable work area and DPI scale (1.0 = 96 DPI).
type Monitor struct {
	Name     string
	WorkArea Rect
	Primary  bool
	Scale    float64
}

// DefaultWorkArea is assumed when no monitor can be queried.
var DefaultWorkArea = Rect{X: 0, Y: 0, W: 1920, H: 1080}

// System groups the platform bindings behind one value so consumers can
// accept narrow interfaces and tests can substitute fakes.
type System struct{}

func (System) TopLevelWindows(pids []uint32) ([]Window, error) { return topLevelWindows(pids) }

func (System) Foreground() (FocusEvent, error) { return foreground() }

func (System) Activate(t Target) error { return activate(t) }

func (System) Monitors() ([]Monitor, error) { return monitors() }

func (System) ConsoleWindow(chain []uint32) (Window, bool) { return consoleWindow(chain) }
