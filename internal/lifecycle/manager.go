// ABOUTME: Owns every notification record. All mutation happens on the goroutine
// ABOUTME: running Run; IPC handlers, focus callbacks and timers only post events.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/777genius/agent-toast/internal/config"
	"github.com/777genius/agent-toast/internal/daemon"
	"github.com/777genius/agent-toast/internal/desktop"
	"github.com/777genius/agent-toast/internal/errorhandler"
	"github.com/777genius/agent-toast/internal/focus"
	"github.com/777genius/agent-toast/internal/logging"
)

const (
	// RequestIDTTL is how long request ids are remembered for dedupe.
	RequestIDTTL = 10 * time.Minute
	// DuplicateWindow drops identical content arriving this close together.
	DuplicateWindow = time.Second

	maxEnded    = 1024
	eventBuffer = 256
)

// Presenter displays records. Show is called once per record; Move and Hide
// refer to records previously shown.
type Presenter interface {
	Show(r Record) error
	Move(id string, rect desktop.Rect)
	Hide(id string)
}

type Activator interface {
	Activate(t desktop.Target) error
}

type ForegroundProbe interface {
	Foreground() (desktop.FocusEvent, error)
}

type Placer interface {
	Place(corner, selector string, index int) desktop.Rect
}

// SoundPlayer plays path, or the built-in sound when path is empty. It must
// not block.
type SoundPlayer interface {
	Play(path string)
}

// Options wires the manager to its collaborators. Nil fields are replaced by
// no-op implementations.
type Options struct {
	Presenter  Presenter
	Activator  Activator
	Foreground ForegroundProbe
	Placer     Placer
	Sound      SoundPlayer
	Settings   func() config.Config
	Clock      Clock

	// OnTransition observes every state change.
	OnTransition func(r Record, from State)
	// OnSettings and OnStop handle control messages.
	OnSettings func()
	OnStop     func()
}

type Manager struct {
	opts   Options
	events chan func()
	done   chan struct{}

	nextID  uint64
	records map[string]*Record
	order   []string

	ended      map[string]State
	endedOrder []string

	seenRequests map[string]time.Time
	recent       map[string]time.Time
}

func NewManager(opts Options) *Manager {
	if opts.Presenter == nil {
		opts.Presenter = nopPresenter{}
	}
	if opts.Activator == nil {
		opts.Activator = nopActivator{}
	}
	if opts.Placer == nil {
		opts.Placer = fixedPlacer{}
	}
	if opts.Sound == nil {
		opts.Sound = nopSound{}
	}
	if opts.Settings == nil {
		opts.Settings = func() config.Config { return *config.DefaultConfig() }
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	return &Manager{
		opts:         opts,
		events:       make(chan func(), eventBuffer),
		done:         make(chan struct{}),
		records:      make(map[string]*Record),
		ended:        make(map[string]State),
		seenRequests: make(map[string]time.Time),
		recent:       make(map[string]time.Time),
	}
}

// Run is the single writer. It returns when ctx is cancelled, after hiding
// every shown notification. focusEvents may be nil.
func (m *Manager) Run(ctx context.Context, focusEvents <-chan desktop.FocusEvent) error {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.hideAll()
			return nil
		case fn := <-m.events:
			errorhandler.Recover(fn)
		case ev, ok := <-focusEvents:
			if !ok {
				focusEvents = nil
				continue
			}
			errorhandler.Recover(func() { m.focusChanged(ev) })
		}
	}
}

// post hands fn to the loop. After Run has returned the event is dropped.
func (m *Manager) post(fn func()) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.events <- fn:
		return true
	case <-m.done:
		return false
	}
}

// HandleMessage receives decoded IPC messages.
func (m *Manager) HandleMessage(msg daemon.Message) {
	switch msg.Type {
	case daemon.MessageTypeNotify:
		m.Notify(msg.RequestID, msg.Notify)
	case daemon.MessageTypePing:
		logging.Debug("ping %s", msg.RequestID)
	case daemon.MessageTypeSettings:
		if m.opts.OnSettings != nil {
			errorhandler.SafeGo(m.opts.OnSettings)
		}
	case daemon.MessageTypeStop:
		logging.Info("stop requested")
		if m.opts.OnStop != nil {
			m.opts.OnStop()
		}
	}
}

// Notify queues a notification request.
func (m *Manager) Notify(requestID string, req *daemon.NotifyRequest) {
	if req == nil {
		return
	}
	r := *req
	m.post(func() { m.create(requestID, &r) })
}

// Close is the user's explicit dismissal. Unknown or finished ids are ignored.
func (m *Manager) Close(id string) {
	m.post(func() { m.dismiss(id, StateDismissedManual) })
}

// Activate brings the source window forward and closes the notification.
// A zero window means the record's resolved window.
func (m *Manager) Activate(window desktop.Handle, id string) {
	m.post(func() { m.activate(window, id) })
}

// FocusChanged queues a foreground change.
func (m *Manager) FocusChanged(ev desktop.FocusEvent) {
	m.post(func() { m.focusChanged(ev) })
}

// Outcome returns the state of id. Finished records are remembered for a
// bounded number of ids.
func (m *Manager) Outcome(ctx context.Context, id string) (State, bool) {
	type result struct {
		state State
		ok    bool
	}
	reply := make(chan result, 1)
	if !m.post(func() {
		if rec, ok := m.records[id]; ok {
			reply <- result{rec.State, true}
			return
		}
		st, ok := m.ended[id]
		reply <- result{st, ok}
	}) {
		return 0, false
	}
	select {
	case res := <-reply:
		return res.state, res.ok
	case <-ctx.Done():
		return 0, false
	}
}

// Shown returns copies of the displayed records in stacking order.
func (m *Manager) Shown(ctx context.Context) []Record {
	reply := make(chan []Record, 1)
	if !m.post(func() {
		out := make([]Record, 0, len(m.order))
		for _, id := range m.order {
			out = append(out, m.snapshot(m.records[id]))
		}
		reply <- out
	}) {
		return nil
	}
	select {
	case out := <-reply:
		return out
	case <-ctx.Done():
		return nil
	}
}

func (m *Manager) create(requestID string, req *daemon.NotifyRequest) {
	now := m.opts.Clock.Now()
	if m.duplicate(requestID, req, now) {
		return
	}

	cfg := m.opts.Settings()
	m.nextID++
	rec := &Record{
		ID:          fmt.Sprintf("notify-%d", m.nextID),
		Window:      desktop.Handle(req.Window),
		Chain:       append([]uint32(nil), req.ProcessTree...),
		Title:       DisplayTitle(cfg.TitleDisplayMode, req),
		Event:       req.Event,
		EventLabel:  EventLabel(req.Event),
		Message:     req.Message,
		Source:      req.Source,
		Terminal:    req.Terminal,
		AutoDismiss: cfg.AutoDismiss(),
		Created:     now,
		State:       StatePending,
		corner:      cfg.NotificationPosition,
		monitor:     cfg.NotificationMonitor,
	}
	if len(rec.Chain) == 0 && req.PID != 0 && !req.Source.Internal() {
		rec.Chain = []uint32{req.PID}
	}
	if req.Source.Internal() {
		rec.Window = 0
		rec.Chain = nil
	}
	m.records[rec.ID] = rec
	logging.Debug("%s created: event=%s window=%s chain=%v", rec.ID, rec.Event, rec.Window, rec.Chain)

	if cfg.SkipWhenFocused && m.sourceFocused(cfg.FocusMatch, rec) {
		logging.Info("%s skipped: source already focused", rec.ID)
		m.transition(rec, StateSkipped)
		return
	}

	rec.Rect = m.opts.Placer.Place(rec.corner, rec.monitor, len(m.order))
	if err := m.opts.Presenter.Show(m.snapshot(rec)); err != nil {
		logging.Error("%s could not be shown: %v", rec.ID, err)
		m.transition(rec, StateFailed)
		return
	}
	m.order = append(m.order, rec.ID)
	m.transition(rec, StateShown)

	if cfg.NotificationSound {
		m.opts.Sound.Play(cfg.SoundFile)
	}
	if rec.AutoDismiss > 0 {
		m.startTimer(rec)
	}
}

func (m *Manager) sourceFocused(mode string, rec *Record) bool {
	if rec.Source.Internal() || m.opts.Foreground == nil {
		return false
	}
	ev, err := m.opts.Foreground.Foreground()
	if err != nil {
		logging.Debug("foreground probe failed: %v", err)
		return false
	}
	return focus.Matches(mode, rec.Window, rec.Chain, ev)
}

// duplicate drops retransmitted request ids and identical content inside
// DuplicateWindow. It also prunes expired entries.
func (m *Manager) duplicate(requestID string, req *daemon.NotifyRequest, now time.Time) bool {
	for id, at := range m.seenRequests {
		if now.Sub(at) > RequestIDTTL {
			delete(m.seenRequests, id)
		}
	}
	for fp, at := range m.recent {
		if now.Sub(at) > DuplicateWindow {
			delete(m.recent, fp)
		}
	}

	if requestID != "" {
		if _, ok := m.seenRequests[requestID]; ok {
			logging.Debug("dropping repeated request %s", requestID)
			return true
		}
		m.seenRequests[requestID] = now
	}
	fp := fingerprint(req)
	if _, ok := m.recent[fp]; ok {
		logging.Debug("dropping duplicate content from pid %d", req.PID)
		return true
	}
	m.recent[fp] = now
	return false
}

func (m *Manager) startTimer(rec *Record) {
	rec.gen++
	gen, id := rec.gen, rec.ID
	rec.timer = m.opts.Clock.AfterFunc(rec.AutoDismiss, func() {
		m.post(func() { m.timerFired(id, gen) })
	})
}

func (m *Manager) cancelTimer(rec *Record) {
	rec.gen++
	if rec.timer != nil {
		rec.timer.Stop()
		rec.timer = nil
	}
}

// timerFired ignores timers whose generation was superseded by a
// cancellation or by the record ending.
func (m *Manager) timerFired(id string, gen uint64) {
	rec, ok := m.records[id]
	if !ok || rec.gen != gen || rec.State != StateShown {
		return
	}
	m.dismiss(id, StateDismissedAutoTimer)
}

func (m *Manager) activate(window desktop.Handle, id string) {
	rec, ok := m.records[id]
	if !ok || rec.State != StateShown {
		return
	}
	target := rec.Target()
	if window != 0 {
		target.Handle = window
	}
	if target.Handle == 0 && len(target.Chain) == 0 {
		logging.Debug("%s has no source window, activation skipped", id)
	} else if err := m.opts.Activator.Activate(target); err != nil {
		logging.Warn("%s activation of %s failed: %v", id, target.Handle, err)
	}
	m.dismiss(id, StateDismissedActivated)
}

func (m *Manager) focusChanged(ev desktop.FocusEvent) {
	if len(m.order) == 0 {
		return
	}
	cfg := m.opts.Settings()
	if !cfg.AutoCloseOnFocus {
		return
	}
	for _, id := range append([]string(nil), m.order...) {
		rec := m.records[id]
		if rec == nil || rec.Source.Internal() {
			continue
		}
		if focus.Matches(cfg.FocusMatch, rec.Window, rec.Chain, ev) {
			m.dismiss(id, StateDismissedFocusReturn)
		}
	}
}

// dismiss ends a shown record. Calls for unknown or already finished ids do
// nothing.
func (m *Manager) dismiss(id string, to State) {
	rec, ok := m.records[id]
	if !ok || rec.State != StateShown {
		return
	}
	m.cancelTimer(rec)
	m.opts.Presenter.Hide(id)
	m.transition(rec, to)
	m.restack()
}

func (m *Manager) restack() {
	for i, id := range m.order {
		rec := m.records[id]
		rect := m.opts.Placer.Place(rec.corner, rec.monitor, i)
		if rect != rec.Rect {
			rec.Rect = rect
			m.opts.Presenter.Move(id, rect)
		}
	}
}

func (m *Manager) transition(rec *Record, to State) {
	from := rec.State
	if !canTransition(from, to) {
		logging.Warn("%s: refusing transition %s -> %s", rec.ID, from, to)
		return
	}
	rec.State = to
	logging.Debug("%s: %s -> %s", rec.ID, from, to)

	if to.Terminal() {
		delete(m.records, rec.ID)
		m.removeFromOrder(rec.ID)
		m.remember(rec.ID, to)
	}
	if m.opts.OnTransition != nil {
		m.opts.OnTransition(m.snapshot(rec), from)
	}
}

func (m *Manager) removeFromOrder(id string) {
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *Manager) remember(id string, st State) {
	m.ended[id] = st
	m.endedOrder = append(m.endedOrder, id)
	if len(m.endedOrder) > maxEnded {
		delete(m.ended, m.endedOrder[0])
		m.endedOrder = m.endedOrder[1:]
	}
}

func (m *Manager) hideAll() {
	for _, id := range m.order {
		if rec := m.records[id]; rec != nil {
			m.cancelTimer(rec)
		}
		m.opts.Presenter.Hide(id)
	}
	m.order = nil
}

func (m *Manager) snapshot(rec *Record) Record {
	out := *rec
	out.Chain = append([]uint32(nil), rec.Chain...)
	out.timer = nil
	return out
}

type nopPresenter struct{}

func (nopPresenter) Show(Record) error          { return nil }
func (nopPresenter) Move(string, desktop.Rect) {}
func (nopPresenter) Hide(string)               {}

type nopActivator struct{}

func (nopActivator) Activate(desktop.Target) error { return desktop.ErrUnsupported }

type fixedPlacer struct{}

func (fixedPlacer) Place(string, string, int) desktop.Rect { return desktop.Rect{} }

type nopSound struct{}

func (nopSound) Play(string) {}
