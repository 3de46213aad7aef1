//go:build !windows && !linux

package proctree

import "github.com/777genius/agent-toast/internal/desktop"

// Snapshot is unavailable here; resolution degrades to a single-pid chain.
func Snapshot() (Table, error) {
	return nil, desktop.ErrUnsupported
}
