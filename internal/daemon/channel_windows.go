//go:build windows

package daemon

import (
	"net"
	"time"

	"gopkg.in/natefinch/npipe.v2"
)

// PipeChannel is a Windows named pipe.
type PipeChannel struct {
	Name string
}

// DefaultChannel returns the well-known server pipe.
func DefaultChannel() Channel {
	return PipeChannel{Name: PipeName()}
}

func (c PipeChannel) Listen() (net.Listener, error) {
	return npipe.Listen(c.Name)
}

func (c PipeChannel) Dial(timeout time.Duration) (net.Conn, error) {
	return npipe.DialTimeout(c.Name, timeout)
}

func (c PipeChannel) Address() string {
	return c.Name
}
