// Package wsclient is a realtime.Broker backed by the API's /v1/realtime websocket endpoint,
// one socket per subscription. It lets a dashboard run away from the API process.
package wsclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core/realtime"
)

const (
	realtimePath = "/v1/realtime"
	closeTimeout = time.Second
)

type Client struct {
	base    *url.URL
	header  http.Header
	buffer  int
	purpose string
	dialer  *websocket.Dialer
}

var _ realtime.Broker = (*Client)(nil)

// New targets the API at baseURL; http(s) schemes are mapped to ws(s).
// purpose names the subscriber in the server logs.
func New(baseURL, purpose string, buffer int, header http.Header) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing realtime url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, errors.Errorf("unsupported realtime url scheme %q", u.Scheme)
	}
	return &Client{
		base:    u,
		header:  header,
		buffer:  buffer,
		purpose: purpose,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Publish is not supported: changes only originate from the store.
func (cl *Client) Publish(context.Context, realtime.Change) error {
	return realtime.ErrPublishUnsupported
}

func (cl *Client) endpoint(f realtime.Filter) string {
	u := *cl.base
	u.Path += realtimePath
	q := url.Values{}
	q.Set("table", f.Table)
	if len(f.Events) == 1 {
		q.Set("event", string(f.Events[0]))
	}
	if cl.purpose != "" {
		q.Set("purpose", cl.purpose)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Subscribe returns once the server accepted the socket, which it only does after subscribing.
func (cl *Client) Subscribe(ctx context.Context, f realtime.Filter) (*realtime.Subscription, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	conn, resp, err := cl.dialer.DialContext(ctx, cl.endpoint(f), cl.header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "opening subscription on %s: %s", f.Table, resp.Status)
		}
		return nil, errors.Wrapf(err, "opening subscription on %s", f.Table)
	}

	sub := realtime.NewSubscription(f, cl.buffer, func() {
		deadline := time.Now().Add(closeTimeout)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	})
	go cl.read(conn, sub)
	return sub, nil
}

// read pumps frames into sub until the socket fails or sub falls a full buffer behind,
// then closes sub so its reader sees the end.
func (cl *Client) read(conn *websocket.Conn, sub *realtime.Subscription) {
	defer func() { _ = sub.Close() }()
	for {
		var c realtime.Change
		if err := conn.ReadJSON(&c); err != nil {
			return
		}
		if sub.Filter().Matches(c) && !sub.Deliver(c) {
			return
		}
	}
}
