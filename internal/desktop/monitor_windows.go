//go:build windows

package desktop

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	monitorMu      sync.Mutex
	monitorVisitor func(uintptr)
	monitorProc    = windows.NewCallback(func(hmon, _hdc, _rect, _lparam uintptr) uintptr {
		if monitorVisitor != nil {
			monitorVisitor(hmon)
		}
		return 1
	})
)

// monitors returns every display, primary first, with work areas in
// physical pixels.
func monitors() ([]Monitor, error) {
	enableDPIAwareness()

	monitorMu.Lock()
	defer monitorMu.Unlock()

	var out []Monitor
	monitorVisitor = func(hmon uintptr) {
		var mi monitorInfoEx
		mi.cbSize = uint32(unsafe.Sizeof(mi))
		if ok, _, _ := procGetMonitorInfoW.Call(hmon, uintptr(unsafe.Pointer(&mi))); ok == 0 {
			return
		}
		out = append(out, Monitor{
			Name: windows.UTF16ToString(mi.szDevice[:]),
			WorkArea: Rect{
				X: int(mi.rcWork.Left),
				Y: int(mi.rcWork.Top),
				W: int(mi.rcWork.Right - mi.rcWork.Left),
				H: int(mi.rcWork.Bottom - mi.rcWork.Top),
			},
			Primary: mi.dwFlags&monitorinfofPrimary != 0,
			Scale:   monitorScale(hmon),
		})
	}
	defer func() { monitorVisitor = nil }()

	if ok, _, err := procEnumDisplayMonitors.Call(0, 0, monitorProc, 0); ok == 0 {
		return nil, fmt.Errorf("EnumDisplayMonitors: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Primary && !out[j].Primary })
	return out, nil
}

func monitorScale(hmon uintptr) float64 {
	if procGetDpiForMonitor.Find() != nil {
		return 1
	}
	var dpiX, dpiY uint32
	hr, _, _ := procGetDpiForMonitor.Call(hmon, mdtEffectiveDPI, uintptr(unsafe.Pointer(&dpiX)), uintptr(unsafe.Pointer(&dpiY)))
	if hr != 0 || dpiX == 0 {
		return 1
	}
	return float64(dpiX) / 96
}
