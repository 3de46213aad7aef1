package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/777genius/agent-toast/internal/config"
	"github.com/777genius/agent-toast/internal/daemon"
	"github.com/777genius/agent-toast/internal/desktop"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers, ignoring Stop so tests
// can simulate a timer racing its cancellation.
func (c *fakeClock) Advance(d time.Duration, ignoreStop bool) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.at.After(c.now) && (ignoreStop || !t.stopped) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) activeTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakePresenter struct {
	mu      sync.Mutex
	shown   []Record
	hidden  []string
	moves   map[string]desktop.Rect
	showErr error
}

func (p *fakePresenter) Show(r Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.showErr != nil {
		return p.showErr
	}
	p.shown = append(p.shown, r)
	return nil
}

func (p *fakePresenter) Move(id string, rect desktop.Rect) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.moves == nil {
		p.moves = make(map[string]desktop.Rect)
	}
	p.moves[id] = rect
}

func (p *fakePresenter) Hide(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hidden = append(p.hidden, id)
}

func (p *fakePresenter) shownCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.shown)
}

func (p *fakePresenter) hiddenIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.hidden...)
}

type fakeProbe struct {
	ev  desktop.FocusEvent
	err error
}

func (p fakeProbe) Foreground() (desktop.FocusEvent, error) { return p.ev, p.err }

type fakeActivator struct {
	mu      sync.Mutex
	targets []desktop.Target
	err     error
}

func (a *fakeActivator) Activate(t desktop.Target) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.targets = append(a.targets, t)
	return a.err
}

type stackPlacer struct{}

func (stackPlacer) Place(corner, selector string, index int) desktop.Rect {
	return desktop.Rect{X: 100, Y: 1000 - index*150, W: 380, H: 140}
}

type countingSound struct {
	mu    sync.Mutex
	paths []string
}

func (s *countingSound) Play(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

type harness struct {
	mgr       *Manager
	clock     *fakeClock
	presenter *fakePresenter
	activator *fakeActivator
	sound     *countingSound
	cfg       config.Config

	mu          sync.Mutex
	transitions []State
}

func newHarness(t *testing.T, probe ForegroundProbe, mutate func(*config.Config)) *harness {
	t.Helper()
	h := &harness{
		clock:     newFakeClock(),
		presenter: &fakePresenter{},
		activator: &fakeActivator{},
		sound:     &countingSound{},
		cfg:       *config.DefaultConfig(),
	}
	if mutate != nil {
		mutate(&h.cfg)
	}
	h.mgr = NewManager(Options{
		Presenter:  h.presenter,
		Activator:  h.activator,
		Foreground: probe,
		Placer:     stackPlacer{},
		Sound:      h.sound,
		Settings:   func() config.Config { return h.cfg },
		Clock:      h.clock,
		OnTransition: func(r Record, from State) {
			h.mu.Lock()
			h.transitions = append(h.transitions, r.State)
			h.mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.mgr.Run(ctx, nil)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) outcome(t *testing.T, id string) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, ok := h.mgr.Outcome(ctx, id)
	require.True(t, ok, "no record %s", id)
	return st
}

func request(pid uint32) *daemon.NotifyRequest {
	return &daemon.NotifyRequest{
		PID:         pid,
		Event:       "task_complete",
		Message:     "Build done",
		Source:      daemon.SourceClaude,
		ProcessTree: []uint32{pid, 900, 800},
		Window:      0xABC,
		WindowTitle: "pwsh - project",
	}
}

func TestNotifyShowsWhenSourceNotFocused(t *testing.T) {
	h := newHarness(t, fakeProbe{ev: desktop.FocusEvent{Window: 0x999, PID: 1}}, nil)

	h.mgr.Notify("req-1", request(4321))

	assert.Equal(t, StateShown, h.outcome(t, "notify-1"))
	require.Equal(t, 1, h.presenter.shownCount())
	rec := h.presenter.shown[0]
	assert.Equal(t, "task_complete", rec.Event)
	assert.Equal(t, "Task complete", rec.EventLabel)
	assert.Equal(t, "pwsh - project", rec.Title)
	assert.Equal(t, desktop.Handle(0xABC), rec.Window)
	assert.Equal(t, []uint32{4321, 900, 800}, rec.Chain)
	assert.Equal(t, 1, len(h.sound.paths))
}

func TestNotifySkippedWhenSourceFocused(t *testing.T) {
	tests := []struct {
		name  string
		ev    desktop.FocusEvent
		match string
	}{
		{"same window", desktop.FocusEvent{Window: 0xABC, PID: 1}, config.MatchEither},
		{"ancestor process", desktop.FocusEvent{Window: 0x1, PID: 900}, config.MatchEither},
		{"window only", desktop.FocusEvent{Window: 0xABC, PID: 1}, config.MatchWindow},
		{"process only", desktop.FocusEvent{Window: 0x1, PID: 800}, config.MatchProcess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, fakeProbe{ev: tt.ev}, func(c *config.Config) { c.FocusMatch = tt.match })

			h.mgr.Notify("req", request(4321))

			assert.Equal(t, StateSkipped, h.outcome(t, "notify-1"))
			assert.Equal(t, 0, h.presenter.shownCount())
			h.mu.Lock()
			assert.NotContains(t, h.transitions, StateShown)
			h.mu.Unlock()
		})
	}
}

func TestNotifyShownWhenSkipPolicyOff(t *testing.T) {
	h := newHarness(t, fakeProbe{ev: desktop.FocusEvent{Window: 0xABC, PID: 4321}}, func(c *config.Config) {
		c.SkipWhenFocused = false
	})
	h.mgr.Notify("req", request(4321))
	assert.Equal(t, StateShown, h.outcome(t, "notify-1"))
}

func TestNotifyProbeFailureStillShows(t *testing.T) {
	h := newHarness(t, fakeProbe{err: errors.New("no desktop")}, nil)
	h.mgr.Notify("req", request(4321))
	assert.Equal(t, StateShown, h.outcome(t, "notify-1"))
}

func TestPresenterFailure(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.presenter.showErr = errors.New("no display")
	h.mgr.Notify("req", request(1))
	assert.Equal(t, StateFailed, h.outcome(t, "notify-1"))
}

func TestAutoDismissTimer(t *testing.T) {
	h := newHarness(t, nil, func(c *config.Config) { c.AutoDismissSeconds = 5 })

	h.mgr.Notify("req", request(1))
	assert.Equal(t, StateShown, h.outcome(t, "notify-1"))
	assert.Equal(t, 1, h.clock.activeTimers())

	h.clock.Advance(4*time.Second, false)
	assert.Equal(t, StateShown, h.outcome(t, "notify-1"))

	h.clock.Advance(time.Second, false)
	assert.Equal(t, StateDismissedAutoTimer, h.outcome(t, "notify-1"))
	assert.Equal(t, []string{"notify-1"}, h.presenter.hiddenIDs())
}

func TestZeroAutoDismissNeverTimesOut(t *testing.T) {
	h := newHarness(t, nil, func(c *config.Config) { c.AutoDismissSeconds = 0 })

	for i := 0; i < 5; i++ {
		h.mgr.Notify("", &daemon.NotifyRequest{PID: uint32(100 + i), Event: "error", ProcessTree: []uint32{uint32(100 + i)}})
	}
	h.clock.Advance(24*time.Hour, true)

	for _, id := range []string{"notify-1", "notify-2", "notify-3", "notify-4", "notify-5"} {
		assert.Equal(t, StateShown, h.outcome(t, id))
	}
	assert.Equal(t, 0, len(h.clock.timers))
	h.mu.Lock()
	assert.NotContains(t, h.transitions, StateDismissedAutoTimer)
	h.mu.Unlock()
}

func TestFocusReturnCancelsTimer(t *testing.T) {
	h := newHarness(t, nil, func(c *config.Config) { c.AutoDismissSeconds = 30 })

	h.mgr.Notify("req", request(4321))
	require.Equal(t, StateShown, h.outcome(t, "notify-1"))

	h.mgr.FocusChanged(desktop.FocusEvent{Window: 0x5, PID: 800})
	assert.Equal(t, StateDismissedFocusReturn, h.outcome(t, "notify-1"))
	assert.Equal(t, 0, h.clock.activeTimers())

	// A timer that fires after cancellation is a no-op.
	h.clock.Advance(time.Minute, true)
	assert.Equal(t, StateDismissedFocusReturn, h.outcome(t, "notify-1"))
	assert.Equal(t, []string{"notify-1"}, h.presenter.hiddenIDs())
}

func TestFocusReturnDisabled(t *testing.T) {
	h := newHarness(t, nil, func(c *config.Config) { c.AutoCloseOnFocus = false })

	h.mgr.Notify("req", request(4321))
	h.mgr.FocusChanged(desktop.FocusEvent{Window: 0xABC, PID: 4321})
	assert.Equal(t, StateShown, h.outcome(t, "notify-1"))
}

func TestFocusOnUnrelatedWindowKeepsNotification(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.mgr.Notify("req", request(4321))
	h.mgr.FocusChanged(desktop.FocusEvent{Window: 0x77, PID: 5})
	h.mgr.FocusChanged(desktop.FocusEvent{})
	assert.Equal(t, StateShown, h.outcome(t, "notify-1"))
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.mgr.Notify("req", request(1))
	h.mgr.Close("notify-1")
	first := h.outcome(t, "notify-1")

	h.mu.Lock()
	before := len(h.transitions)
	h.mu.Unlock()

	h.mgr.Close("notify-1")
	h.mgr.Close("does-not-exist")
	second := h.outcome(t, "notify-1")

	assert.Equal(t, StateDismissedManual, first)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"notify-1"}, h.presenter.hiddenIDs())
	h.mu.Lock()
	assert.Equal(t, before, len(h.transitions))
	h.mu.Unlock()
}

func TestActivate(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.mgr.Notify("req", request(4321))
	h.mgr.Activate(0, "notify-1")

	assert.Equal(t, StateDismissedActivated, h.outcome(t, "notify-1"))
	require.Len(t, h.activator.targets, 1)
	assert.Equal(t, desktop.Handle(0xABC), h.activator.targets[0].Handle)
	assert.Equal(t, uint32(4321), h.activator.targets[0].PID)

	// Activating again does nothing.
	h.mgr.Activate(0xABC, "notify-1")
	h.outcome(t, "notify-1")
	assert.Len(t, h.activator.targets, 1)
}

func TestActivateFailureStillCloses(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.activator.err = desktop.ErrStaleWindow

	h.mgr.Notify("req", request(4321))
	h.mgr.Activate(0xABC, "notify-1")
	assert.Equal(t, StateDismissedActivated, h.outcome(t, "notify-1"))
}

func TestActivateWithoutWindowIsNoop(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.mgr.Notify("req", &daemon.NotifyRequest{Event: "update_available", Source: daemon.SourceUpdater})
	h.mgr.Activate(0, "notify-1")
	assert.Equal(t, StateDismissedActivated, h.outcome(t, "notify-1"))
	assert.Empty(t, h.activator.targets)
}

func TestDedupe(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.mgr.Notify("same-id", request(1))
	h.mgr.Notify("same-id", request(2))
	// identical content from a second launch within the window
	h.mgr.Notify("other-id", request(1))

	ctx := context.Background()
	assert.Len(t, h.mgr.Shown(ctx), 1)

	h.clock.Advance(2*time.Second, false)
	h.mgr.Notify("third-id", request(1))
	assert.Len(t, h.mgr.Shown(ctx), 2)

	h.clock.Advance(RequestIDTTL+time.Second, false)
	h.mgr.Notify("same-id", request(3))
	assert.Len(t, h.mgr.Shown(ctx), 3)
}

func TestStackingAndRestack(t *testing.T) {
	h := newHarness(t, nil, nil)

	for i := 1; i <= 3; i++ {
		h.mgr.Notify("", &daemon.NotifyRequest{PID: uint32(i), Event: "task_complete", ProcessTree: []uint32{uint32(i)}})
	}
	shown := h.mgr.Shown(context.Background())
	require.Len(t, shown, 3)
	assert.Equal(t, 1000, shown[0].Rect.Y)
	assert.Equal(t, 850, shown[1].Rect.Y)
	assert.Equal(t, 700, shown[2].Rect.Y)

	h.mgr.Close("notify-1")
	shown = h.mgr.Shown(context.Background())
	require.Len(t, shown, 2)
	assert.Equal(t, "notify-2", shown[0].ID)
	assert.Equal(t, 1000, shown[0].Rect.Y)

	h.presenter.mu.Lock()
	assert.Equal(t, 1000, h.presenter.moves["notify-2"].Y)
	assert.Equal(t, 850, h.presenter.moves["notify-3"].Y)
	h.presenter.mu.Unlock()
}

func TestInternalSourceIgnoresFocus(t *testing.T) {
	h := newHarness(t, fakeProbe{ev: desktop.FocusEvent{Window: 0xABC, PID: 7}}, nil)

	h.mgr.Notify("", &daemon.NotifyRequest{PID: 7, Event: "update_available", Source: daemon.SourceUpdater, Window: 0xABC})
	assert.Equal(t, StateShown, h.outcome(t, "notify-1"))

	h.mgr.FocusChanged(desktop.FocusEvent{Window: 0xABC, PID: 7})
	assert.Equal(t, StateShown, h.outcome(t, "notify-1"))
	assert.Equal(t, AppTitle, h.presenter.shown[0].Title)
}

func TestControlMessages(t *testing.T) {
	settings := make(chan struct{}, 1)
	stopped := make(chan struct{}, 1)
	mgr := NewManager(Options{
		OnSettings: func() { settings <- struct{}{} },
		OnStop:     func() { stopped <- struct{}{} },
	})

	mgr.HandleMessage(daemon.NewMessage(daemon.MessageTypePing, nil))
	mgr.HandleMessage(daemon.NewMessage(daemon.MessageTypeSettings, nil))
	mgr.HandleMessage(daemon.NewMessage(daemon.MessageTypeStop, nil))

	select {
	case <-settings:
	case <-time.After(2 * time.Second):
		t.Fatal("settings handler not called")
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop handler not called")
	}
}

func TestShutdownHidesShown(t *testing.T) {
	presenter := &fakePresenter{}
	mgr := NewManager(Options{Presenter: presenter})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = mgr.Run(ctx, nil)
	}()

	mgr.Notify("a", request(1))
	mgr.Notify("b", request(2))
	require.Len(t, mgr.Shown(context.Background()), 2)

	cancel()
	<-done
	assert.ElementsMatch(t, []string{"notify-1", "notify-2"}, presenter.hiddenIDs())

	// posting after shutdown does not block
	mgr.Close("notify-1")
	_, ok := mgr.Outcome(context.Background(), "notify-1")
	assert.False(t, ok)
}

func TestRunConsumesFocusChannel(t *testing.T) {
	presenter := &fakePresenter{}
	mgr := NewManager(Options{Presenter: presenter})
	focusEvents := make(chan desktop.FocusEvent, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mgr.Run(ctx, focusEvents) }()

	mgr.Notify("a", request(4321))
	require.Len(t, mgr.Shown(ctx), 1)

	focusEvents <- desktop.FocusEvent{Window: 0xABC, PID: 4321}
	assert.Eventually(t, func() bool {
		st, ok := mgr.Outcome(ctx, "notify-1")
		return ok && st == StateDismissedFocusReturn
	}, 2*time.Second, 10*time.Millisecond)
}
