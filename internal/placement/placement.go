// ABOUTME: Computes where a notification goes: monitor choice, corner anchor,
// ABOUTME: DPI scaling, stacking offset and clamping into the work area.
package placement

import (
	"math"
	"strconv"

	"github.com/777genius/agent-toast/internal/desktop"
	"github.com/777genius/agent-toast/internal/logging"
)

// Layout is the notification size and edge margin in logical (96 DPI) pixels.
type Layout struct {
	Width  int
	Height int
	Margin int
}

// DefaultLayout matches the notification window size.
var DefaultLayout = Layout{Width: 380, Height: 140, Margin: 10}

// Corner names accepted by Compute.
const (
	TopLeft     = "top_left"
	TopRight    = "top_right"
	BottomLeft  = "bottom_left"
	BottomRight = "bottom_right"
)

// Select picks the monitor named by selector ("primary" or a zero-based
// index). A missing index falls back to the primary monitor, then to the
// first one, then to a default screen.
func Select(mons []desktop.Monitor, selector string) desktop.Monitor {
	var usable []desktop.Monitor
	for _, m := range mons {
		if m.WorkArea.W > 0 && m.WorkArea.H > 0 {
			usable = append(usable, m)
		}
	}
	if len(usable) == 0 {
		return desktop.Monitor{Name: "default", WorkArea: desktop.DefaultWorkArea, Primary: true, Scale: 1}
	}

	if idx, err := strconv.Atoi(selector); err == nil {
		if idx >= 0 && idx < len(usable) {
			return usable[idx]
		}
		logging.Debug("monitor %d not present, using primary", idx)
	}

	for _, m := range usable {
		if m.Primary {
			return m
		}
	}
	return usable[0]
}

// Compute returns the rectangle, in physical pixels, for the notification at
// stack position index anchored to corner. The result always lies inside the
// monitor's work area.
func Compute(m desktop.Monitor, corner string, index int, l Layout) desktop.Rect {
	scale := m.Scale
	if scale <= 0 {
		scale = 1
	}
	if index < 0 {
		index = 0
	}
	wa := m.WorkArea

	w := scaled(l.Width, scale)
	h := scaled(l.Height, scale)
	margin := scaled(l.Margin, scale)
	w = clampInt(w, 0, wa.W)
	h = clampInt(h, 0, wa.H)
	offset := index * (h + margin)

	var x, y int
	switch corner {
	case TopLeft:
		x, y = wa.X+margin, wa.Y+margin+offset
	case TopRight:
		x, y = wa.Right()-margin-w, wa.Y+margin+offset
	case BottomLeft:
		x, y = wa.X+margin, wa.Bottom()-margin-h-offset
	default:
		x, y = wa.Right()-margin-w, wa.Bottom()-margin-h-offset
	}

	return desktop.Rect{
		X: clampInt(x, wa.X, wa.Right()-w),
		Y: clampInt(y, wa.Y, wa.Bottom()-h),
		W: w,
		H: h,
	}
}

func scaled(v int, scale float64) int {
	return int(math.Round(float64(v) * scale))
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MonitorSource lists the current displays.
type MonitorSource interface {
	Monitors() ([]desktop.Monitor, error)
}

// Placer enumerates monitors on every call so hot-plugged displays are
// picked up.
type Placer struct {
	src    MonitorSource
	layout Layout
}

func NewPlacer(src MonitorSource, l Layout) *Placer {
	return &Placer{src: src, layout: l}
}

func (p *Placer) Place(corner, selector string, index int) desktop.Rect {
	mons, err := p.src.Monitors()
	if err != nil {
		logging.Debug("monitor enumeration failed, using default work area: %v", err)
	}
	return Compute(Select(mons, selector), corner, index, p.layout)
}
