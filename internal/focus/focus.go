// ABOUTME: Foreground focus monitor. Wraps an OS subscription and queues FocusEvents
// ABOUTME: for the event loop; also owns the single rule for "is this our window".
package focus

import (
	"sync"
	"sync/atomic"

	"github.com/777genius/agent-toast/internal/desktop"
	"github.com/777genius/agent-toast/internal/logging"
)

// Match modes, mirroring the focus_match setting.
const (
	MatchEither  = "either"
	MatchWindow  = "window"
	MatchProcess = "process"
)

// Subscriber is an OS foreground-change subscription. The callback runs on
// the subscriber's own thread.
type Subscriber interface {
	Subscribe(func(desktop.FocusEvent)) error
	Unsubscribe() error
}

// Matches decides whether ev refers to the source described by window and
// chain. The same rule serves both the "already focused" check at creation
// and "focus returned" while shown. A zero handle or empty chain never
// matches, and neither does a foreground pid of zero.
func Matches(mode string, window desktop.Handle, chain []uint32, ev desktop.FocusEvent) bool {
	byWindow := window != 0 && ev.Window == window
	byProcess := false
	if ev.PID != 0 {
		for _, pid := range chain {
			if pid == ev.PID {
				byProcess = true
				break
			}
		}
	}

	switch mode {
	case MatchWindow:
		return byWindow
	case MatchProcess:
		return byProcess
	default:
		return byWindow || byProcess
	}
}

// Monitor queues events from a Subscriber. When the queue is full the oldest
// event is discarded; only recent foreground state matters.
type Monitor struct {
	sub     Subscriber
	events  chan desktop.FocusEvent
	dropped atomic.Uint64

	mu      sync.Mutex
	running bool
}

func NewMonitor(sub Subscriber, buffer int) *Monitor {
	if buffer <= 0 {
		buffer = 64
	}
	return &Monitor{sub: sub, events: make(chan desktop.FocusEvent, buffer)}
}

// Events is read by the event loop.
func (m *Monitor) Events() <-chan desktop.FocusEvent {
	return m.events
}

// Dropped counts events discarded because the queue was full.
func (m *Monitor) Dropped() uint64 {
	return m.dropped.Load()
}

// Start subscribes. A failure is returned for logging; callers continue
// without focus-return dismissal.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	if err := m.sub.Subscribe(m.push); err != nil {
		return err
	}
	m.running = true
	logging.Debug("foreground monitor started")
	return nil
}

func (m *Monitor) push(ev desktop.FocusEvent) {
	for {
		select {
		case m.events <- ev:
			return
		default:
		}
		select {
		case <-m.events:
			m.dropped.Add(1)
		default:
		}
	}
}

// Stop unsubscribes and waits for the subscriber thread to finish.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	return m.sub.Unsubscribe()
}
