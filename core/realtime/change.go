// Package realtime carries committed row changes from the store to subscribers.
//
// A Broker fans every published Change out to each open Subscription whose Filter matches it.
// Delivery is at-least-once and ordered within a subscription; nothing is guaranteed across subscriptions.
// A subscriber that lets its buffer fill up is disconnected rather than silently skipped.
// Subscriptions are explicit handles: whoever opens one must Close it.
package realtime

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventAll    EventType = "*"
)

// ParseEventType accepts the event names case-insensitively; "" and "*" mean all events.
func ParseEventType(s string) (EventType, error) {
	switch evt := EventType(strings.ToUpper(strings.TrimSpace(s))); evt {
	case "", EventAll:
		return EventAll, nil
	case EventInsert, EventUpdate, EventDelete:
		return evt, nil
	default:
		return "", errors.Errorf("unknown event type %q", s)
	}
}

// Change is one committed row-level change.
type Change struct {
	Table      string          `json:"table"`
	Event      EventType       `json:"event"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
	CommitTime time.Time       `json:"commit_timestamp"`
}

// NewChange builds a Change from row images; either may be nil.
func NewChange(table string, event EventType, newRow, oldRow interface{}) (Change, error) {
	c := Change{Table: table, Event: event, CommitTime: time.Now().UTC()}
	if newRow != nil {
		data, err := json.Marshal(newRow)
		if err != nil {
			return Change{}, errors.Wrap(err, "encoding new row")
		}
		c.New = data
	}
	if oldRow != nil {
		data, err := json.Marshal(oldRow)
		if err != nil {
			return Change{}, errors.Wrap(err, "encoding old row")
		}
		c.Old = data
	}
	return c, nil
}

// DecodeNew unmarshals the new row image into v.
func (c Change) DecodeNew(v interface{}) error {
	if len(c.New) == 0 {
		return errors.Errorf("%s change on %s has no new row", c.Event, c.Table)
	}
	return errors.Wrap(json.Unmarshal(c.New, v), "decoding new row")
}

// Filter selects the changes a subscription receives. No Events means every event.
type Filter struct {
	Table  string
	Events []EventType
}

func (f Filter) Matches(c Change) bool {
	if c.Table != f.Table {
		return false
	}
	if len(f.Events) == 0 {
		return true
	}
	for _, evt := range f.Events {
		if evt == EventAll || evt == c.Event {
			return true
		}
	}
	return false
}

func (f Filter) Validate() error {
	if strings.TrimSpace(f.Table) == "" {
		return ErrNoTable
	}
	return nil
}

// InsertsOn is the insert-only filter for table.
func InsertsOn(table string) Filter {
	return Filter{Table: table, Events: []EventType{EventInsert}}
}

// AllOn is the all-events filter for table.
func AllOn(table string) Filter {
	return Filter{Table: table}
}
