//go:build windows

package desktop

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	hookMu   sync.Mutex
	hookSink func(FocusEvent)

	winEventProc = windows.NewCallback(func(_hook, event, hwnd, _idObject, _idChild, _thread, _time uintptr) uintptr {
		if event != eventSystemForeground || hwnd == 0 {
			return 0
		}
		hookMu.Lock()
		sink := hookSink
		hookMu.Unlock()
		if sink != nil {
			sink(FocusEvent{Window: Handle(hwnd), PID: windowPID(windows.HWND(hwnd))})
		}
		return 0
	})
)

// ForegroundHook delivers foreground changes from an out-of-context
// WinEvent hook. The hook lives on a dedicated locked OS thread that pumps
// messages until Unsubscribe posts WM_QUIT to it.
type ForegroundHook struct {
	mu       sync.Mutex
	threadID uint32
	done     chan struct{}
}

func NewForegroundHook() *ForegroundHook {
	return &ForegroundHook{}
}

func (h *ForegroundHook) Subscribe(cb func(FocusEvent)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done != nil {
		return errors.New("foreground hook already subscribed")
	}

	ready := make(chan error, 1)
	done := make(chan struct{})

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(done)

		hook, _, err := procSetWinEventHook.Call(
			eventSystemForeground, eventSystemForeground,
			0, winEventProc, 0, 0,
			wineventOutOfContext|wineventSkipOwnProc,
		)
		if hook == 0 {
			ready <- fmt.Errorf("SetWinEventHook: %w", err)
			return
		}
		defer procUnhookWinEvent.Call(hook)

		hookMu.Lock()
		hookSink = cb
		hookMu.Unlock()
		defer func() {
			hookMu.Lock()
			hookSink = nil
			hookMu.Unlock()
		}()

		h.threadID = windows.GetCurrentThreadId()
		ready <- nil

		var m msg
		for {
			r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if int32(r) <= 0 {
				return
			}
			procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
			procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
		}
	}()

	if err := <-ready; err != nil {
		<-done
		return err
	}
	h.done = done
	return nil
}

// Unsubscribe stops the message loop and waits for the thread to exit.
func (h *ForegroundHook) Unsubscribe() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done == nil {
		return nil
	}
	if ok, _, err := procPostThreadMessageW.Call(uintptr(h.threadID), wmQuit, 0, 0); ok == 0 {
		return fmt.Errorf("PostThreadMessage(WM_QUIT): %w", err)
	}
	<-h.done
	h.done = nil
	return nil
}
