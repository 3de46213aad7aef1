//go:build linux

package proctree

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procRoot is replaced in tests.
var procRoot = "/proc"

// Snapshot reads /proc/<pid>/stat for every process.
func Snapshot() (Table, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", procRoot, err)
	}

	table := MapTable{}
	for _, e := range entries {
		pid, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(procRoot, e.Name(), "stat"))
		if err != nil {
			continue // exited between ReadDir and ReadFile
		}
		if p, ok := parseStat(uint32(pid), string(data)); ok {
			table[p.PID] = p
		}
	}
	return table, nil
}

// parseStat extracts comm and ppid from a stat line. comm is wrapped in
// parentheses and may itself contain spaces or parentheses.
func parseStat(pid uint32, line string) (Process, bool) {
	open := strings.IndexByte(line, '(')
	end := strings.LastIndexByte(line, ')')
	if open < 0 || end < open {
		return Process{}, false
	}
	fields := strings.Fields(line[end+1:])
	if len(fields) < 2 {
		return Process{}, false
	}
	ppid, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return Process{}, false
	}
	return Process{PID: pid, PPID: uint32(ppid), Exe: line[open+1 : end]}, true
}
