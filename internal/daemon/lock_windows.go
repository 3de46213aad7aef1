//go:build windows

package daemon

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// MutexLock is a named Win32 mutex.
type MutexLock struct {
	Name   string
	handle windows.Handle
}

// DefaultLock returns the well-known singleton mutex.
func DefaultLock() Lock {
	return &MutexLock{Name: MutexName()}
}

func (l *MutexLock) TryAcquire() (bool, error) {
	if l.handle != 0 {
		return true, nil
	}

	name, err := windows.UTF16PtrFromString(l.Name)
	if err != nil {
		return false, err
	}

	h, err := windows.CreateMutex(nil, true, name)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		if h != 0 {
			windows.CloseHandle(h)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("CreateMutex(%s): %w", l.Name, err)
	}

	// never closed: the handle lives as long as the process
	l.handle = h
	return true, nil
}
