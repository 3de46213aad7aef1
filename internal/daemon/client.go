// ABOUTME: One-shot sender used by CLI invocations that are not the server.
package daemon

import (
	"fmt"
	"time"
)

// DefaultDialTimeout bounds the connect attempt.
const DefaultDialTimeout = 2 * time.Second

// Client delivers messages to a running server. Delivery is fire-and-forget:
// no reply is read.
type Client struct {
	channel Channel
	timeout time.Duration
}

func NewClient(ch Channel) *Client {
	return &Client{channel: ch, timeout: DefaultDialTimeout}
}

// Send writes m and closes the connection. A connect failure wraps
// ErrNoServer; a failure after connecting wraps ErrRejected.
func (c *Client) Send(m Message) error {
	conn, err := c.channel.Dial(c.timeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoServer, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if err := Encode(conn, m); err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	// Half-close where supported so the reader sees end-of-stream at once.
	if hc, ok := conn.(interface{ CloseWrite() error }); ok {
		hc.CloseWrite()
	}
	return nil
}
