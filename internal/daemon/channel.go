package daemon

import (
	"net"
	"time"
)

// Channel is a local, named, connection-oriented transport with exactly one
// listener per machine. Each connection carries one message.
type Channel interface {
	Listen() (net.Listener, error)
	Dial(timeout time.Duration) (net.Conn, error)
	Address() string
}
