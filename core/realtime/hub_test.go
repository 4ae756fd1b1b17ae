package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func change(t *testing.T, table string, event EventType, id string) Change {
	c, err := NewChange(table, event, map[string]string{"id": id}, nil)
	require.NoError(t, err)
	return c
}

func drain(sub *Subscription) []Change {
	var got []Change
	for {
		select {
		case c, ok := <-sub.C():
			if !ok {
				return got
			}
			got = append(got, c)
		default:
			return got
		}
	}
}

func TestHub_fanOut(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Close() }()
	ctx := context.Background()

	inserts, err := hub.Subscribe(ctx, InsertsOn("incidents"))
	require.NoError(t, err)
	all, err := hub.Subscribe(ctx, AllOn("incidents"))
	require.NoError(t, err)
	other, err := hub.Subscribe(ctx, AllOn("attendance_records"))
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, change(t, "incidents", EventInsert, "1")))
	require.NoError(t, hub.Publish(ctx, change(t, "incidents", EventUpdate, "1")))
	require.NoError(t, hub.Publish(ctx, change(t, "incidents", EventInsert, "2")))

	got := drain(inserts)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"id":"1"}`, string(got[0].New))
	assert.JSONEq(t, `{"id":"2"}`, string(got[1].New), "order is preserved")

	got = drain(all)
	require.Len(t, got, 3)
	assert.Equal(t, []EventType{EventInsert, EventUpdate, EventInsert}, []EventType{got[0].Event, got[1].Event, got[2].Event})

	assert.Empty(t, drain(other))
}

func TestHub_Subscribe(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	_, err := hub.Subscribe(ctx, Filter{Table: " "})
	assert.Equal(t, ErrNoTable, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = hub.Subscribe(cancelled, AllOn("incidents"))
	assert.Equal(t, context.Canceled, err)

	sub, err := hub.Subscribe(ctx, AllOn("incidents"))
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Len("incidents"))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "closing twice is fine")
	assert.True(t, sub.Closed())
	assert.Equal(t, 0, hub.Len("incidents"))
	_, open := <-sub.C()
	assert.False(t, open)

	require.NoError(t, hub.Close())
	_, err = hub.Subscribe(ctx, AllOn("incidents"))
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, ErrClosed, hub.Publish(ctx, change(t, "incidents", EventInsert, "1")))
}

func TestHub_slowSubscriber(t *testing.T) {
	var (
		mu      sync.Mutex
		dropped []string
	)
	hub := NewHub(WithBufferSize(2), WithDropHook(func(s *Subscription, c Change) {
		mu.Lock()
		defer mu.Unlock()
		dropped = append(dropped, s.ID())
	}))
	ctx := context.Background()

	slow, err := hub.Subscribe(ctx, AllOn("incidents"))
	require.NoError(t, err)
	fast, err := hub.Subscribe(ctx, AllOn("incidents"))
	require.NoError(t, err)

	var fastGot int
	for i := 0; i < 4; i++ {
		require.NoError(t, hub.Publish(ctx, change(t, "incidents", EventInsert, "x")), "the publisher never blocks")
		fastGot += len(drain(fast))
	}

	assert.True(t, slow.Closed(), "a full buffer disconnects the subscriber")
	assert.Len(t, drain(slow), 2, "what was queued before the overflow is still readable")
	_, open := <-slow.C()
	assert.False(t, open)
	assert.Equal(t, []string{slow.ID()}, dropped, "counted once, then gone")

	assert.False(t, fast.Closed())
	assert.Equal(t, 4, fastGot)
	assert.Equal(t, 1, hub.Len("incidents"))
}

func TestHub_overflowCloses(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Close() }()
	ctx := context.Background()

	idle, err := hub.Subscribe(ctx, InsertsOn("incidents"))
	require.NoError(t, err)

	const published = 100
	for i := 0; i < published; i++ {
		require.NoError(t, hub.Publish(ctx, change(t, "incidents", EventInsert, "x")))
	}

	// a subscription that could not take every change is not left open
	assert.True(t, idle.Closed())
	assert.Len(t, drain(idle), DefaultBufferSize)
	assert.Equal(t, 0, hub.Len("incidents"))
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	a, err := hub.Subscribe(ctx, AllOn("incidents"))
	require.NoError(t, err)
	b, err := hub.Subscribe(ctx, AllOn("attendance_records"))
	require.NoError(t, err)

	require.NoError(t, hub.Close())
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Equal(t, 0, hub.Len("incidents"))
	require.NoError(t, hub.Close())
}

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in      string
		want    EventType
		wantErr bool
	}{
		{in: "", want: EventAll},
		{in: "*", want: EventAll},
		{in: "insert", want: EventInsert},
		{in: " UPDATE ", want: EventUpdate},
		{in: "Delete", want: EventDelete},
		{in: "truncate", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseEventType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
