//go:build !windows

package daemon

import (
	"fmt"
	"net"
	"os"
	"time"
)

// UnixChannel is a Unix domain socket readable only by the owner.
type UnixChannel struct {
	Path string
}

// DefaultChannel returns the well-known server socket.
func DefaultChannel() Channel {
	return UnixChannel{Path: GetSocketPath()}
}

// Listen replaces any stale socket. Callers hold the singleton lock, so no
// live server can own the path.
func (c UnixChannel) Listen() (net.Listener, error) {
	os.Remove(c.Path)

	l, err := net.Listen("unix", c.Path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(c.Path, 0600); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return l, nil
}

func (c UnixChannel) Dial(timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", c.Path, timeout)
}

func (c UnixChannel) Address() string {
	return c.Path
}
