// Package dashboard is the client side of the realtime pipeline: widgets that keep a view of the
// store current by subscribing to changes, and the notifier that alerts once per incident.
//
// A Session runs every widget callback on a single event loop goroutine. Fetches run off-loop and
// post their result back, so the loop never blocks on the network.
package dashboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/realtime"
)

var ErrAlreadyMounted = errors.New("widget already mounted")

type (
	// Widget is a view backed by one or more subscriptions.
	Widget interface {
		Name() string
		Filters() []realtime.Filter
		// Handle runs on the session loop.
		Handle(loop *Loop, c realtime.Change)
	}

	// Loader widgets get Load called on the loop when mounted.
	Loader interface {
		Load(loop *Loop)
	}

	// ConnectionAware widgets are told whether their subscriptions are live.
	ConnectionAware interface {
		SetConnected(connected bool)
	}

	Session struct {
		broker realtime.Broker
		logger core.Logger
		dedup  *Deduplicator

		ctx    context.Context
		cancel context.CancelFunc
		async  sync.WaitGroup

		qmu      sync.Mutex
		queue    []func()
		stopped  bool
		wake     chan struct{}
		loopDone chan struct{}

		mu      sync.Mutex
		mounted map[Widget]*mount
	}

	mount struct {
		mu    sync.Mutex
		subs  []*realtime.Subscription
		pumps sync.WaitGroup
	}

	SessionOption func(*Session)
)

// WithDeduplicator shares dedup between the session notifiers.
func WithDeduplicator(dedup *Deduplicator) SessionOption {
	return func(s *Session) { s.dedup = dedup }
}

func NewSession(broker realtime.Broker, logger core.Logger, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		broker:   broker,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		loopDone: make(chan struct{}),
		mounted:  make(map[Widget]*mount),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dedup == nil {
		s.dedup = NewDeduplicator(DefaultDedupCapacity, 0)
	}
	go s.run()
	return s
}

// Dedup is the session wide processed-id set.
func (s *Session) Dedup() *Deduplicator { return s.dedup }

// Mount opens w's subscriptions and schedules its initial load.
// A subscription that fails to open is logged and the widget is marked disconnected; it keeps its last data.
func (s *Session) Mount(ctx context.Context, w Widget) error {
	m := new(mount)
	s.mu.Lock()
	if _, ok := s.mounted[w]; ok {
		s.mu.Unlock()
		return ErrAlreadyMounted
	}
	s.mounted[w] = m
	m.mu.Lock() // Unmount waits for us
	s.mu.Unlock()
	defer m.mu.Unlock()

	loop := &Loop{s: s, w: w, m: m}
	if l, ok := w.(Loader); ok {
		s.post(s.guard(w, m, func() { l.Load(loop) }))
	}

	connected := true
	for _, f := range w.Filters() {
		sub, err := s.broker.Subscribe(ctx, f)
		if err != nil {
			s.logger.Warn(fmt.Sprintf("%s: subscribing to %s failed; showing last known data", w.Name(), f.Table), err)
			connected = false
			continue
		}
		m.subs = append(m.subs, sub)
		m.pumps.Add(1)
		go s.pump(loop, sub)
	}
	if ca, ok := w.(ConnectionAware); ok {
		s.post(s.guard(w, m, func() { ca.SetConnected(connected) }))
	}
	return nil
}

// Unmount synchronously closes w's subscriptions. Tasks still queued for w are dropped.
func (s *Session) Unmount(w Widget) {
	s.mu.Lock()
	m, ok := s.mounted[w]
	delete(s.mounted, w)
	s.mu.Unlock()
	if !ok {
		return
	}

	m.mu.Lock()
	for _, sub := range m.subs {
		_ = sub.Close()
	}
	m.subs = nil
	m.mu.Unlock()
	m.pumps.Wait()
}

// Mounted reports whether w is currently mounted.
func (s *Session) Mounted(w Widget) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.mounted[w]
	return ok
}

// Do runs fn on the loop and waits for it. It returns realtime.ErrClosed once the session is closed.
func (s *Session) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !s.post(func() { defer close(done); fn() }) {
		return realtime.ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.loopDone: // closed before fn got its turn
		return realtime.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync waits until every task queued so far has run.
func (s *Session) Sync(ctx context.Context) error {
	return s.Do(ctx, func() {})
}

// Close unmounts every widget and stops the loop.
func (s *Session) Close() {
	s.mu.Lock()
	widgets := make([]Widget, 0, len(s.mounted))
	for w := range s.mounted {
		widgets = append(widgets, w)
	}
	s.mu.Unlock()
	for _, w := range widgets {
		s.Unmount(w)
	}

	// refuse new tasks before the loop goes away
	s.qmu.Lock()
	s.stopped = true
	s.queue = nil
	s.qmu.Unlock()

	s.cancel()
	s.async.Wait()
	<-s.loopDone
}

func (s *Session) pump(loop *Loop, sub *realtime.Subscription) {
	defer loop.m.pumps.Done()
	for c := range sub.C() {
		c := c
		s.post(s.guard(loop.w, loop.m, func() { loop.w.Handle(loop, c) }))
	}
	// the broker dropped us (eg. lost connection) unless we are being unmounted
	if ca, ok := loop.w.(ConnectionAware); ok {
		s.post(s.guard(loop.w, loop.m, func() { ca.SetConnected(false) }))
	}
}

// guard drops fn if the mount it was scheduled for is gone.
func (s *Session) guard(w Widget, m *mount, fn func()) func() {
	return func() {
		s.mu.Lock()
		current := s.mounted[w]
		s.mu.Unlock()
		if current == m {
			fn()
		}
	}
}

func (s *Session) post(task func()) bool {
	s.qmu.Lock()
	if s.stopped {
		s.qmu.Unlock()
		return false
	}
	s.queue = append(s.queue, task)
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Session) next() func() {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	task := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return task
}

func (s *Session) run() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		for task := s.next(); task != nil; task = s.next() {
			s.exec(task)
		}
	}
}

// exec contains a panicking widget to its own task.
func (s *Session) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Sprintf("dashboard task panicked: %v", r))
		}
	}()
	task()
}

// Loop is a widget's handle onto its session loop.
type Loop struct {
	s *Session
	w Widget
	m *mount
}

func (l *Loop) Logger() core.Logger { return l.s.logger }

// Post schedules fn on the loop.
func (l *Loop) Post(fn func()) {
	l.s.post(l.s.guard(l.w, l.m, fn))
}

// Go runs fn off-loop; the callback it returns (if any) runs on the loop, unless the widget was unmounted meanwhile.
func (l *Loop) Go(fn func(ctx context.Context) func()) {
	l.s.async.Add(1)
	go func() {
		defer l.s.async.Done()
		if done := fn(l.s.ctx); done != nil {
			l.Post(done)
		}
	}()
}
