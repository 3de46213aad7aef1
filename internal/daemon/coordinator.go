// ABOUTME: Elects one long-running server among concurrent CLI invocations.
// ABOUTME: Losers deliver their message to the winner and exit.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/777genius/agent-toast/internal/logging"
)

// ServeFunc runs the server. It is called with the message that the
// elected process itself carried and returns when the server stops.
type ServeFunc func(ctx context.Context, initial Message) error

// Coordinator decides whether this process serves or delivers.
type Coordinator struct {
	lock    Lock
	client  *Client
	backoff time.Duration
	retries int
}

func NewCoordinator(lock Lock, client *Client) *Coordinator {
	return &Coordinator{lock: lock, client: client, backoff: 250 * time.Millisecond, retries: 3}
}

// Run acquires the singleton lock and serves, or sends msg to the server
// holding it. When the lock is taken but nobody answers, typically a server
// that has just locked but not yet listened or one tearing down, it waits
// and retries both lock and send a bounded number of times.
func (c *Coordinator) Run(ctx context.Context, msg Message, serve ServeFunc) error {
	if err := msg.Normalize(); err != nil {
		return fmt.Errorf("invalid %s message: %w", msg.Type, err)
	}

	ok, err := c.lock.TryAcquire()
	if err != nil {
		return fmt.Errorf("acquire singleton lock: %w", err)
	}
	if ok {
		return serve(ctx, msg)
	}

	err = c.client.Send(msg)
	for attempt := 1; err != nil && errors.Is(err, ErrNoServer) && attempt <= c.retries; attempt++ {
		wait := time.Duration(attempt) * c.backoff
		logging.Warn("lock held but no server answered; retry %d in %s", attempt, wait)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		ok, lerr := c.lock.TryAcquire()
		if lerr != nil {
			return fmt.Errorf("acquire singleton lock: %w", lerr)
		}
		if ok {
			return serve(ctx, msg)
		}
		err = c.client.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("deliver %s message: %w", msg.Type, err)
	}

	logging.Debug("delivered %s message %s to running server", msg.Type, msg.RequestID)
	return nil
}
