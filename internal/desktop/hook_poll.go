//go:build !windows

package desktop

import (
	"errors"
	"sync"
	"time"
)

// PollInterval is how often the polling hook samples the foreground window.
var PollInterval = 500 * time.Millisecond

// ForegroundHook samples the foreground window on platforms without a
// change notification and reports transitions.
type ForegroundHook struct {
	mu    sync.Mutex
	probe func() (FocusEvent, error)
	stop  chan struct{}
	done  chan struct{}
}

func NewForegroundHook() *ForegroundHook {
	return &ForegroundHook{probe: foreground}
}

func (h *ForegroundHook) Subscribe(cb func(FocusEvent)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return errors.New("foreground hook already subscribed")
	}

	last, err := h.probe()
	if err != nil {
		return err
	}

	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.poll(last, cb, h.stop, h.done)
	return nil
}

func (h *ForegroundHook) poll(last FocusEvent, cb func(FocusEvent), stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ev, err := h.probe()
			if err != nil || ev.Window == 0 || ev == last {
				continue
			}
			last = ev
			cb(ev)
		}
	}
}

func (h *ForegroundHook) Unsubscribe() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop == nil {
		return nil
	}
	close(h.stop)
	<-h.done
	h.stop, h.done = nil, nil
	return nil
}
