//go:build windows

package desktop

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// topLevelWindows lists top-level windows in z-order. A nil pids slice
// returns every window.
func topLevelWindows(pids []uint32) ([]Window, error) {
	var want map[uint32]bool
	if pids != nil {
		want = make(map[uint32]bool, len(pids))
		for _, pid := range pids {
			want[pid] = true
		}
	}

	var out []Window
	err := enumWindows(func(h windows.HWND) {
		if want != nil && !want[windowPID(h)] {
			return
		}
		out = append(out, describe(h))
	})
	if err != nil {
		return out, fmt.Errorf("EnumWindows: %w", err)
	}
	return out, nil
}

func foreground() (FocusEvent, error) {
	h := windows.GetForegroundWindow()
	if h == 0 {
		return FocusEvent{}, nil
	}
	return FocusEvent{Window: Handle(h), PID: windowPID(h)}, nil
}

// consoleWindow finds the terminal hosting this process when no window of
// the chain qualified: first our own console window, then the topmost
// Windows Terminal window.
func consoleWindow(chain []uint32) (Window, bool) {
	if h, _, _ := procGetConsoleWindow.Call(); h != 0 {
		if w := describe(windows.HWND(h)); w.Candidate() {
			return w, true
		}
	}

	all, err := topLevelWindows(nil)
	if err != nil {
		return Window{}, false
	}
	for _, w := range all {
		if w.Class == windowsTerminalClass && w.Candidate() {
			return w, true
		}
	}
	return Window{}, false
}

// activate restores a minimised window and forces it to the foreground.
// SetForegroundWindow is refused unless the caller received the last input
// event, so a synthetic Alt press and release is sent first.
func activate(t Target) error {
	h := windows.HWND(t.Handle)
	if h == 0 || !windows.IsWindow(h) {
		return ErrStaleWindow
	}

	if iconic, _, _ := procIsIconic.Call(uintptr(h)); iconic != 0 {
		procShowWindow.Call(uintptr(h), swRestore)
	}

	sendAltTap()

	if ok, _, err := procSetForegroundWindow.Call(uintptr(h)); ok == 0 {
		return fmt.Errorf("SetForegroundWindow(%s): %w", t.Handle, err)
	}
	return nil
}

func sendAltTap() {
	inputs := [2]input{
		{inputType: inputKeyboard, ki: keybdInput{wVk: vkMenu}},
		{inputType: inputKeyboard, ki: keybdInput{wVk: vkMenu, dwFlags: keyeventfKeyUp}},
	}
	procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
}
