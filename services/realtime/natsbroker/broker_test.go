package natsbroker

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/core/realtime"
	testutil "github.com/trezcool/masomo/tests"
)

func runServer(t *testing.T) string {
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: server.RANDOM_PORT, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns.ClientURL()
}

func receive(t *testing.T, sub *realtime.Subscription) realtime.Change {
	select {
	case c := <-sub.C():
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no change received")
	}
	return realtime.Change{}
}

func TestBroker(t *testing.T) {
	url := runServer(t)
	logger := testutil.NewLogger(log.New(io.Discard, "", 0))

	b, err := Connect(url, "", 8, logger)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	ctx := context.Background()
	inserts, err := b.Subscribe(ctx, realtime.InsertsOn("incidents"))
	require.NoError(t, err)
	all, err := b.Subscribe(ctx, realtime.AllOn("incidents"))
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, realtime.AllOn("attendance_records"))
	require.NoError(t, err)
	defer func() { _ = other.Close() }()

	ins, err := realtime.NewChange("incidents", realtime.EventInsert, map[string]string{"id": "1"}, nil)
	require.NoError(t, err)
	upd, err := realtime.NewChange("incidents", realtime.EventUpdate, map[string]string{"id": "1"}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, ins))
	require.NoError(t, b.Publish(ctx, upd))

	assert.Equal(t, realtime.EventInsert, receive(t, inserts).Event)
	first, second := receive(t, all), receive(t, all)
	assert.Equal(t, realtime.EventInsert, first.Event)
	assert.JSONEq(t, `{"id":"1"}`, string(first.New))
	assert.Equal(t, realtime.EventUpdate, second.Event)

	select {
	case c := <-inserts.C():
		t.Errorf("insert-only subscription got %s", c.Event)
	case c := <-other.C():
		t.Errorf("attendance subscription got %s on %s", c.Event, c.Table)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, inserts.Close())
	require.NoError(t, inserts.Close())
	_, open := <-inserts.C()
	assert.False(t, open)
}

func TestBroker_Subject(t *testing.T) {
	b := New(nil, "", 0, nil)
	assert.Equal(t, "masomo.changes.incidents.INSERT", b.Subject("incidents", realtime.EventInsert))
	assert.Equal(t, "masomo.changes.incidents.*", b.Subject("incidents", realtime.EventAll))
	assert.Equal(t, "masomo.changes.incidents.*", b.Subject("incidents", ""))
}

func TestBroker_slowSubscriber(t *testing.T) {
	url := runServer(t)
	b, err := Connect(url, "", 2, testutil.NewLogger(nil))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	var dropped atomic.Int32
	b.OnDrop(func(*realtime.Subscription, realtime.Change) { dropped.Add(1) })

	ctx := context.Background()
	sub, err := b.Subscribe(ctx, realtime.AllOn("incidents"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		c, err := realtime.NewChange("incidents", realtime.EventInsert, map[string]int{"n": i}, nil)
		require.NoError(t, err)
		require.NoError(t, b.Publish(ctx, c))
	}

	require.Eventually(t, sub.Closed, 2*time.Second, 10*time.Millisecond, "a full buffer disconnects the subscriber")
	assert.Equal(t, int32(1), dropped.Load())
	var got int
	for range sub.C() {
		got++
	}
	assert.Equal(t, 2, got)
}
