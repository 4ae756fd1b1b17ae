package dashboard

import (
	"sync"
	"time"
)

const DefaultDedupCapacity = 1024

var nowFunc = time.Now // mockable

// Deduplicator remembers which ids were already processed.
// It holds at most capacity ids, evicting the oldest first; with a positive ttl an id may be processed again once it expires.
type Deduplicator struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	seen     map[string]time.Time
	ring     []string
	next     int
}

func NewDeduplicator(capacity int, ttl time.Duration) *Deduplicator {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &Deduplicator{
		capacity: capacity,
		ttl:      ttl,
		seen:     make(map[string]time.Time, capacity),
		ring:     make([]string, 0, capacity),
	}
}

// MarkNew records id and reports whether it had not been seen (or had expired).
func (d *Deduplicator) MarkNew(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := nowFunc()
	if at, ok := d.seen[id]; ok {
		if d.ttl <= 0 || now.Sub(at) < d.ttl {
			return false
		}
		d.seen[id] = now
		return true
	}

	if len(d.ring) < d.capacity {
		d.ring = append(d.ring, id)
	} else {
		delete(d.seen, d.ring[d.next])
		d.ring[d.next] = id
		d.next = (d.next + 1) % d.capacity
	}
	d.seen[id] = now
	return true
}

func (d *Deduplicator) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
