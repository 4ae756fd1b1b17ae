package metricsvc

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo/core/realtime"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ObserveIngest("phone_detected", OutcomeOK)
	m.ObserveIngest("phone_detected", OutcomeOK)
	m.ObserveIngest("dance", OutcomeUnknown)
	m.ObserveIngest("dance-2", OutcomeUnknown)
	m.ObserveIngest("", OutcomeInvalid)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingested.WithLabelValues("phone_detected", OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingested.WithLabelValues(UnknownAction, OutcomeUnknown)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingested.WithLabelValues(UnknownAction, OutcomeInvalid)))
	assert.Equal(t, 3, testutil.CollectAndCount(m.ingested), "producer supplied actions do not add series")

	c := realtime.Change{Table: "incidents", Event: realtime.EventInsert}
	m.ObserveRelay(c)
	m.ObserveDrop(nil, c)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayed.WithLabelValues("incidents", "INSERT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("incidents")))

	done1 := m.TrackSubscription("incidents")
	done2 := m.TrackSubscription("incidents")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.subscriptions.WithLabelValues("incidents")))
	done1()
	done2()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.subscriptions.WithLabelValues("incidents")))
}
