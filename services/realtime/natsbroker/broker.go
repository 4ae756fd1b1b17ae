// Package natsbroker fans changes out over NATS so that every API instance sees the changes
// relayed by any of them.
package natsbroker

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/realtime"
)

const DefaultPrefix = "masomo.changes"

type Broker struct {
	conn   *nats.Conn
	prefix string
	buffer int
	logger core.Logger
	onDrop func(*realtime.Subscription, realtime.Change)
	owned  bool
}

var _ realtime.Broker = (*Broker)(nil)

// Connect dials url and returns a Broker owning the connection.
func Connect(url, prefix string, buffer int, logger core.Logger) (*Broker, error) {
	conn, err := nats.Connect(url,
		nats.Name("masomo-realtime"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected to " + c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to nats")
	}
	b := New(conn, prefix, buffer, logger)
	b.owned = true
	return b, nil
}

func New(conn *nats.Conn, prefix string, buffer int, logger core.Logger) *Broker {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Broker{conn: conn, prefix: prefix, buffer: buffer, logger: logger}
}

// OnDrop sets the hook called when a subscriber buffer is full, before the subscriber is closed.
func (b *Broker) OnDrop(fn func(*realtime.Subscription, realtime.Change)) { b.onDrop = fn }

// Subject is "<prefix>.<table>.<EVENT>".
func (b *Broker) Subject(table string, event realtime.EventType) string {
	if event == "" || event == realtime.EventAll {
		return b.prefix + "." + table + ".*"
	}
	return b.prefix + "." + table + "." + strings.ToUpper(string(event))
}

func (b *Broker) Publish(ctx context.Context, c realtime.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding change")
	}
	return errors.Wrap(b.conn.Publish(b.Subject(c.Table, c.Event), data), "publishing change")
}

// Subscribe returns once the server has registered the interest.
func (b *Broker) Subscribe(ctx context.Context, f realtime.Filter) (*realtime.Subscription, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	event := realtime.EventAll
	if len(f.Events) == 1 {
		event = f.Events[0]
	}

	var ns *nats.Subscription
	sub := realtime.NewSubscription(f, b.buffer, func() {
		if ns != nil {
			_ = ns.Unsubscribe()
		}
	})

	ns, err := b.conn.Subscribe(b.Subject(f.Table, event), func(msg *nats.Msg) {
		var c realtime.Change
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			b.logger.Warn("dropping malformed change message", errors.Wrap(err, msg.Subject))
			return
		}
		if !f.Matches(c) {
			return
		}
		if !sub.Deliver(c) && !sub.Closed() {
			if b.onDrop != nil {
				b.onDrop(sub, c)
			}
			_ = sub.Close() // slow consumer
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "subscribing")
	}
	if err = b.conn.FlushWithContext(ctx); err != nil {
		_ = ns.Unsubscribe()
		return nil, errors.Wrap(err, "flushing subscription")
	}
	return sub, nil
}

// Close drains the connection when the broker opened it.
func (b *Broker) Close() error {
	if !b.owned {
		return nil
	}
	return b.conn.Drain()
}
