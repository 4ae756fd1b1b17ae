package dashboard

import (
	"context"
	"sync"

	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/realtime"
)

// TableView re-queries the incidents table on every change it is told about.
// Fetches may complete out of order; only the result of the latest one issued is kept.
type TableView struct {
	name     string
	fetcher  Fetcher
	query    Query
	onChange func(rows []incident.Incident)

	// loop only
	issued  uint64
	applied uint64

	mu        sync.RWMutex
	loop      *Loop
	rows      []incident.Incident
	connected bool
	fetchErr  error
}

var (
	_ Widget          = (*TableView)(nil)
	_ Loader          = (*TableView)(nil)
	_ ConnectionAware = (*TableView)(nil)
)

func NewTableView(name string, fetcher Fetcher, q Query, onChange func(rows []incident.Incident)) *TableView {
	return &TableView{
		name:     name,
		fetcher:  fetcher,
		query:    q,
		onChange: onChange,
	}
}

func (tv *TableView) Name() string { return tv.name }

func (tv *TableView) Filters() []realtime.Filter {
	return []realtime.Filter{realtime.AllOn(incident.TableName)}
}

func (tv *TableView) Load(loop *Loop) {
	tv.mu.Lock()
	tv.loop = loop
	tv.mu.Unlock()
	tv.Refresh(loop)
}

func (tv *TableView) Handle(loop *Loop, _ realtime.Change) { tv.Refresh(loop) }

// Refresh must be called on the loop.
func (tv *TableView) Refresh(loop *Loop) {
	tv.issued++
	seq := tv.issued
	tv.mu.RLock()
	q := tv.query
	tv.mu.RUnlock()
	loop.Go(func(ctx context.Context) func() {
		rows, err := tv.fetcher.FetchIncidents(ctx, q)
		return func() {
			if seq < tv.applied {
				return // a newer fetch already landed
			}
			tv.applied = seq
			tv.mu.Lock()
			if err != nil {
				tv.fetchErr = err
				tv.mu.Unlock()
				loop.Logger().Warn(tv.name+": refresh failed; keeping last rows", err)
				return
			}
			tv.rows = rows
			tv.fetchErr = nil
			tv.mu.Unlock()
			if tv.onChange != nil {
				tv.onChange(tv.Rows())
			}
		}
	})
}

// SetQuery replaces the query and, once mounted, schedules a refresh.
func (tv *TableView) SetQuery(q Query) {
	tv.mu.Lock()
	tv.query = q
	loop := tv.loop
	tv.mu.Unlock()
	if loop != nil {
		loop.Post(func() { tv.Refresh(loop) })
	}
}

func (tv *TableView) Rows() []incident.Incident {
	tv.mu.RLock()
	defer tv.mu.RUnlock()
	rows := make([]incident.Incident, len(tv.rows))
	copy(rows, tv.rows)
	return rows
}

func (tv *TableView) SetConnected(connected bool) {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	tv.connected = connected
}

func (tv *TableView) Connected() bool {
	tv.mu.RLock()
	defer tv.mu.RUnlock()
	return tv.connected
}

func (tv *TableView) FetchErr() error {
	tv.mu.RLock()
	defer tv.mu.RUnlock()
	return tv.fetchErr
}
