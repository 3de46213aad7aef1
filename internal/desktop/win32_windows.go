//go:build windows

package desktop

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	shcore   = windows.NewLazySystemDLL("shcore.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procGetWindowTextW                = user32.NewProc("GetWindowTextW")
	procGetWindowLongW                = user32.NewProc("GetWindowLongW")
	procIsIconic                      = user32.NewProc("IsIconic")
	procShowWindow                    = user32.NewProc("ShowWindow")
	procSetForegroundWindow           = user32.NewProc("SetForegroundWindow")
	procSendInput                     = user32.NewProc("SendInput")
	procSetWinEventHook               = user32.NewProc("SetWinEventHook")
	procUnhookWinEvent                = user32.NewProc("UnhookWinEvent")
	procGetMessageW                   = user32.NewProc("GetMessageW")
	procTranslateMessage              = user32.NewProc("TranslateMessage")
	procDispatchMessageW              = user32.NewProc("DispatchMessageW")
	procPostThreadMessageW            = user32.NewProc("PostThreadMessageW")
	procEnumDisplayMonitors           = user32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW               = user32.NewProc("GetMonitorInfoW")
	procSetProcessDpiAwarenessContext = user32.NewProc("SetProcessDpiAwarenessContext")
	procGetDpiForMonitor              = shcore.NewProc("GetDpiForMonitor")
	procGetConsoleWindow              = kernel32.NewProc("GetConsoleWindow")
)

const (
	wsExToolWindow = 0x00000080

	swRestore = 9

	inputKeyboard  = 1
	vkMenu         = 0x12
	keyeventfKeyUp = 0x0002

	eventSystemForeground = 0x0003
	wineventOutOfContext  = 0x0000
	wineventSkipOwnProc   = 0x0002

	wmQuit = 0x0012

	monitorinfofPrimary = 0x1
	mdtEffectiveDPI     = 0

	windowsTerminalClass = "CASCADIA_HOSTING_WINDOW_CLASS"
)

// GWL_EXSTYLE; kept as a variable so the negative index converts at runtime.
var gwlExStyle int32 = -20

// dpiAwarenessPerMonitorV2 is DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2.
var dpiAwarenessPerMonitorV2 = -4

type keybdInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

// input mirrors INPUT for the keyboard case. The trailing padding makes the
// struct as large as the MOUSEINPUT arm of the union on both 386 and amd64.
type input struct {
	inputType uint32
	ki        keybdInput
	padding   uint64
}

type point struct {
	x, y int32
}

type msg struct {
	hwnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       point
	lPrivate uint32
}

type monitorInfoEx struct {
	cbSize    uint32
	rcMonitor windows.Rect
	rcWork    windows.Rect
	dwFlags   uint32
	szDevice  [32]uint16
}

func windowText(h windows.HWND) string {
	buf := make([]uint16, 512)
	n, _, _ := procGetWindowTextW.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:n])
}

func windowClass(h windows.HWND) string {
	buf := make([]uint16, 256)
	n, err := windows.GetClassName(h, &buf[0], int32(len(buf)))
	if err != nil {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func isToolWindow(h windows.HWND) bool {
	style, _, _ := procGetWindowLongW.Call(uintptr(h), uintptr(gwlExStyle))
	return style&wsExToolWindow != 0
}

func windowPID(h windows.HWND) uint32 {
	var pid uint32
	windows.GetWindowThreadProcessId(h, &pid)
	return pid
}

func describe(h windows.HWND) Window {
	return Window{
		Handle:  Handle(h),
		PID:     windowPID(h),
		Title:   windowText(h),
		Class:   windowClass(h),
		Visible: windows.IsWindowVisible(h),
		Tool:    isToolWindow(h),
	}
}

// EnumWindows callbacks cannot be released, so a single callback serves all
// enumerations and hands each handle to the active visitor.
var (
	enumMu      sync.Mutex
	enumVisitor func(windows.HWND)
	enumProc    = windows.NewCallback(func(h windows.HWND, _ uintptr) uintptr {
		if enumVisitor != nil {
			enumVisitor(h)
		}
		return 1
	})
)

func enumWindows(visit func(windows.HWND)) error {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumVisitor = visit
	defer func() { enumVisitor = nil }()
	return windows.EnumWindows(enumProc, nil)
}

var dpiOnce sync.Once

func enableDPIAwareness() {
	dpiOnce.Do(func() {
		if procSetProcessDpiAwarenessContext.Find() == nil {
			procSetProcessDpiAwarenessContext.Call(uintptr(dpiAwarenessPerMonitorV2))
		}
	})
}
