package metricsvc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/masomo/core/ingest"
	"github.com/trezcool/masomo/core/realtime"
)

const namespace = "masomo"

// Ingest outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeUnknown  = "unknown_action"
	OutcomeStoreErr = "store_error"
)

// UnknownAction labels every action outside ingest.Actions().
const UnknownAction = "unknown"

// Metrics holds the app collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ingested      *prometheus.CounterVec
	relayed       *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	subscriptions *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Producer events received, by action and outcome.",
		}, []string{"action", "outcome"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "changes_relayed_total",
			Help:      "Row changes relayed from the change feed to the broker.",
		}, []string{"table", "event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "changes_dropped_total",
			Help:      "Changes dropped because a subscriber buffer was full.",
		}, []string{"table"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "subscriptions",
			Help:      "Open websocket subscriptions, by table.",
		}, []string{"table"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingested,
		m.relayed,
		m.dropped,
		m.subscriptions,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveIngest counts one producer event. action comes from the producer, so only known actions
// get their own series.
func (m *Metrics) ObserveIngest(action, outcome string) {
	m.ingested.WithLabelValues(actionLabel(action), outcome).Inc()
}

func actionLabel(action string) string {
	for _, known := range ingest.Actions() {
		if action == string(known) {
			return action
		}
	}
	return UnknownAction
}

func (m *Metrics) ObserveRelay(c realtime.Change) {
	m.relayed.WithLabelValues(c.Table, string(c.Event)).Inc()
}

// ObserveDrop has the signature of a realtime.Hub drop hook.
func (m *Metrics) ObserveDrop(_ *realtime.Subscription, c realtime.Change) {
	m.dropped.WithLabelValues(c.Table).Inc()
}

// TrackSubscription counts an open subscription until the returned func is called.
func (m *Metrics) TrackSubscription(table string) (done func()) {
	g := m.subscriptions.WithLabelValues(table)
	g.Inc()
	return g.Dec
}
