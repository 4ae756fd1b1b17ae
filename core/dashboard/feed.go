package dashboard

import (
	"context"
	"sync"

	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/realtime"
)

const DefaultFeedSize = 20

type (
	// LiveFeed keeps the most recent incidents, newest first, prepending inserts as they arrive.
	LiveFeed struct {
		fetcher  Fetcher
		size     int
		onChange func(items []incident.Incident)

		mu        sync.RWMutex
		items     []incident.Incident
		connected bool
		loaded    bool
		loadErr   error
	}

	FeedOption func(*LiveFeed)
)

var (
	_ Widget          = (*LiveFeed)(nil)
	_ Loader          = (*LiveFeed)(nil)
	_ ConnectionAware = (*LiveFeed)(nil)
)

// OnFeedChange is called on the session loop with a copy of the items after every change.
func OnFeedChange(fn func(items []incident.Incident)) FeedOption {
	return func(f *LiveFeed) { f.onChange = fn }
}

func NewLiveFeed(fetcher Fetcher, size int, opts ...FeedOption) *LiveFeed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	f := &LiveFeed{fetcher: fetcher, size: size}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *LiveFeed) Name() string { return "live-feed" }

func (f *LiveFeed) Filters() []realtime.Filter {
	return []realtime.Filter{realtime.InsertsOn(incident.TableName)}
}

func (f *LiveFeed) Load(loop *Loop) {
	q := Query{Filter: incident.QueryFilter{Limit: f.size}, Ordering: incident.DefaultOrdering}
	loop.Go(func(ctx context.Context) func() {
		items, err := f.fetcher.FetchIncidents(ctx, q)
		return func() {
			if err != nil {
				loop.Logger().Warn("live-feed: initial load failed", err)
				f.mu.Lock()
				f.loadErr = err
				f.mu.Unlock()
				return
			}
			f.merge(items)
		}
	})
}

func (f *LiveFeed) Handle(_ *Loop, c realtime.Change) {
	if c.Event != realtime.EventInsert {
		return
	}
	var inc incident.Incident
	if err := c.DecodeNew(&inc); err != nil || inc.ID == "" {
		return
	}
	f.Push(inc)
}

// Push prepends inc unless it is already listed. It reports whether the feed changed.
func (f *LiveFeed) Push(inc incident.Incident) bool {
	f.mu.Lock()
	if f.indexOf(inc.ID) >= 0 {
		f.mu.Unlock()
		return false
	}
	items := make([]incident.Incident, 0, f.size)
	items = append(items, inc)
	items = append(items, f.items...)
	if len(items) > f.size {
		items = items[:f.size]
	}
	f.items = items
	f.mu.Unlock()

	f.changed()
	return true
}

// merge lays a loaded snapshot under the inserts received while it was in flight.
func (f *LiveFeed) merge(snapshot []incident.Incident) {
	f.mu.Lock()
	items := make([]incident.Incident, 0, f.size)
	items = append(items, f.items...)
	for _, inc := range snapshot {
		if f.indexOf(inc.ID) < 0 {
			items = append(items, inc)
		}
	}
	if len(items) > f.size {
		items = items[:f.size]
	}
	f.items = items
	f.loaded = true
	f.loadErr = nil
	f.mu.Unlock()

	f.changed()
}

// indexOf must be called with f.mu held.
func (f *LiveFeed) indexOf(id string) int {
	for i := range f.items {
		if f.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *LiveFeed) changed() {
	if f.onChange != nil {
		f.onChange(f.Items())
	}
}

// Items returns a copy of the feed, newest first.
func (f *LiveFeed) Items() []incident.Incident {
	f.mu.RLock()
	defer f.mu.RUnlock()
	items := make([]incident.Incident, len(f.items))
	copy(items, f.items)
	return items
}

func (f *LiveFeed) SetConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
}

func (f *LiveFeed) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

// Loaded reports whether the initial snapshot arrived.
func (f *LiveFeed) Loaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loaded
}

func (f *LiveFeed) LoadErr() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loadErr
}
