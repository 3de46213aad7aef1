//go:build windows

package proctree

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Snapshot captures the process table with a toolhelp snapshot.
func Snapshot() (Table, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	table := MapTable{}
	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	err = windows.Process32First(snap, &entry)
	for err == nil {
		table[entry.ProcessID] = Process{
			PID:  entry.ProcessID,
			PPID: entry.ParentProcessID,
			Exe:  windows.UTF16ToString(entry.ExeFile[:]),
		}
		err = windows.Process32Next(snap, &entry)
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return table, fmt.Errorf("Process32Next: %w", err)
	}
	return table, nil
}
