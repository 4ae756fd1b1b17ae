// Package pgfeed relays the row changes postgres NOTIFYs on a channel into a realtime.Broker.
// The notifications are emitted by the triggers installed by the migrations, after commit.
package pgfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/realtime"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

var ErrInvalidPayload = errors.New("invalid change payload")

type (
	Feed struct {
		dsn     string
		channel string
		broker  realtime.Broker
		logger  core.Logger
		onRelay func(realtime.Change)
	}

	Option func(*Feed)
)

// OnRelay is called after each change is handed to the broker.
func OnRelay(fn func(realtime.Change)) Option {
	return func(f *Feed) { f.onRelay = fn }
}

func New(dsn, channel string, broker realtime.Broker, logger core.Logger, opts ...Option) *Feed {
	f := &Feed{dsn: dsn, channel: channel, broker: broker, logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run listens until ctx is done. The listener reconnects on its own; changes committed while
// disconnected are lost, which subscribers recover from by refetching.
func (f *Feed) Run(ctx context.Context) error {
	l := pq.NewListener(f.dsn, minReconnectInterval, maxReconnectInterval, f.reportEvent)
	defer func() { _ = l.Close() }()

	if err := l.Listen(f.channel); err != nil {
		return errors.Wrapf(err, "listening on %s", f.channel)
	}
	f.logger.Info(fmt.Sprintf("listening for changes on %q", f.channel))

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-l.Notify:
			if n == nil { // reconnected
				continue
			}
			f.relay(ctx, n.Extra)
		case <-ticker.C:
			go func() { _ = l.Ping() }()
		}
	}
}

func (f *Feed) relay(ctx context.Context, payload string) {
	c, err := ParsePayload(payload)
	if err != nil {
		f.logger.Warn("dropping change notification", err)
		return
	}
	if err = f.broker.Publish(ctx, c); err != nil {
		f.logger.Error("publishing change", errors.Wrap(err, c.Table))
		return
	}
	if f.onRelay != nil {
		f.onRelay(c)
	}
}

func (f *Feed) reportEvent(evt pq.ListenerEventType, err error) {
	switch evt {
	case pq.ListenerEventConnectionAttemptFailed:
		f.logger.Warn("change feed connection attempt failed", err)
	case pq.ListenerEventDisconnected:
		f.logger.Warn("change feed disconnected", err)
	case pq.ListenerEventReconnected:
		f.logger.Info("change feed reconnected")
	}
}

var jsonNull = []byte("null")

// ParsePayload decodes a notify_table_change() payload.
func ParsePayload(payload string) (realtime.Change, error) {
	var c realtime.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return realtime.Change{}, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	if c.Table == "" {
		return realtime.Change{}, errors.Wrap(ErrInvalidPayload, "missing table")
	}
	evt, err := realtime.ParseEventType(string(c.Event))
	if err != nil || evt == realtime.EventAll {
		return realtime.Change{}, errors.Wrapf(ErrInvalidPayload, "bad event %q", c.Event)
	}
	c.Event = evt
	if bytes.Equal(c.New, jsonNull) {
		c.New = nil
	}
	if bytes.Equal(c.Old, jsonNull) {
		c.Old = nil
	}
	if c.CommitTime.IsZero() {
		c.CommitTime = time.Now().UTC()
	}
	return c, nil
}
