package realtime

import (
	"context"
	"sync"
)

type (
	// Hub is the in-process Broker.
	Hub struct {
		mu     sync.RWMutex
		subs   map[string]map[string]*Subscription // {table: {id: sub}}
		closed bool

		buffer int
		onDrop func(*Subscription, Change)
	}

	HubOption func(*Hub)
)

var _ Broker = (*Hub)(nil)

// WithBufferSize sets the per-subscription buffer.
func WithBufferSize(n int) HubOption {
	return func(h *Hub) { h.buffer = n }
}

// WithDropHook is called whenever a change could not be queued for a subscriber, just before that
// subscriber is disconnected.
func WithDropHook(fn func(*Subscription, Change)) HubOption {
	return func(h *Hub) { h.onDrop = fn }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[string]map[string]*Subscription),
		buffer: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish never blocks on slow subscribers: a subscriber whose buffer is full is closed instead,
// so every subscription still open has received every change.
func (h *Hub) Publish(ctx context.Context, c Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var slow []*Subscription
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrClosed
	}
	for _, sub := range h.subs[c.Table] {
		if !sub.Filter().Matches(c) {
			continue
		}
		if !sub.Deliver(c) && !sub.Closed() {
			if h.onDrop != nil {
				h.onDrop(sub, c)
			}
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	// Close calls remove, which takes the lock
	for _, sub := range slow {
		_ = sub.Close()
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, f Filter) (*Subscription, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	var sub *Subscription
	sub = NewSubscription(f, h.buffer, func() { h.remove(f.Table, sub.ID()) })
	table, ok := h.subs[f.Table]
	if !ok {
		table = make(map[string]*Subscription)
		h.subs[f.Table] = table
	}
	table[sub.ID()] = sub
	return sub, nil
}

func (h *Hub) remove(table, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[table], id)
	if len(h.subs[table]) == 0 {
		delete(h.subs, table)
	}
}

// Len returns the number of open subscriptions on table.
func (h *Hub) Len(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}

// Close closes every open subscription and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var all []*Subscription
	for _, table := range h.subs {
		for _, sub := range table {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	// Close calls remove, which takes the lock
	for _, sub := range all {
		_ = sub.Close()
	}
	return nil
}
