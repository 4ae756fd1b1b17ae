package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const DefaultBufferSize = 64

var (
	ErrNoTable            = errors.New("subscription table is required")
	ErrClosed             = errors.New("broker closed")
	ErrPublishUnsupported = errors.New("broker does not support publishing")
)

// Broker is the fan-out. Subscribe returns once the channel is live.
type Broker interface {
	Publish(ctx context.Context, c Change) error
	Subscribe(ctx context.Context, f Filter) (*Subscription, error)
}

// Subscription is a live handle onto a Broker. Changes arrive on C() until Close is called
// or the broker drops the channel (lost connection, full buffer), at which point C() is closed.
type Subscription struct {
	id      string
	filter  Filter
	ch      chan Change
	release func()

	mu     sync.Mutex
	closed bool
}

// NewSubscription is used by Broker implementations. release is called once, on Close.
func NewSubscription(f Filter, buffer int, release func()) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Subscription{
		id:      uuid.NewString(),
		filter:  f,
		ch:      make(chan Change, buffer),
		release: release,
	}
}

func (s *Subscription) ID() string       { return s.id }
func (s *Subscription) Filter() Filter   { return s.filter }
func (s *Subscription) C() <-chan Change { return s.ch }

// Deliver queues c without blocking. It returns false when the subscription is closed or its buffer is full.
func (s *Subscription) Deliver(c Change) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- c:
		return true
	default:
		return false
	}
}

func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	if s.release != nil {
		s.release()
	}
	return nil
}
