package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/realtime"
)

type (
	// Alert is what the notifier shows for a new incident.
	Alert struct {
		IncidentID   string
		Title        string
		Description  string
		IncidentType string
		RoomNumber   string
		Severity     incident.Severity
		DetectedAt   time.Time
	}

	AlertSink interface {
		Notify(ctx context.Context, alert Alert) error
	}

	AlertFunc func(ctx context.Context, alert Alert) error

	// Notifier alerts once per new incident: a visual toast first, then the best-effort cues (sound, email...).
	// Cue failures are swallowed; they never suppress the toast.
	Notifier struct {
		dedup *Deduplicator
		toast AlertSink
		cues  []AlertSink
	}
)

var (
	_ Widget    = (*Notifier)(nil)
	_ AlertSink = AlertFunc(nil)
)

func (fn AlertFunc) Notify(ctx context.Context, alert Alert) error { return fn(ctx, alert) }

func NewAlert(inc incident.Incident) Alert {
	return Alert{
		IncidentID:   inc.ID,
		Title:        "New Incident: " + inc.IncidentType,
		Description:  "Detected in Room " + inc.RoomNumber,
		IncidentType: inc.IncidentType,
		RoomNumber:   inc.RoomNumber,
		Severity:     inc.Severity,
		DetectedAt:   inc.DetectedAt,
	}
}

func (a Alert) String() string { return a.Title + " - " + a.Description }

// NewNotifier uses dedup to remember alerted incidents; pass the session's to share it across notifiers.
func NewNotifier(dedup *Deduplicator, toast AlertSink, cues ...AlertSink) *Notifier {
	if dedup == nil {
		dedup = NewDeduplicator(DefaultDedupCapacity, 0)
	}
	return &Notifier{dedup: dedup, toast: toast, cues: cues}
}

func (n *Notifier) Name() string { return "notifier" }

func (n *Notifier) Filters() []realtime.Filter {
	return []realtime.Filter{realtime.InsertsOn(incident.TableName)}
}

func (n *Notifier) Handle(loop *Loop, c realtime.Change) {
	if c.Event != realtime.EventInsert {
		return
	}
	var inc incident.Incident
	if err := c.DecodeNew(&inc); err != nil || inc.ID == "" {
		return
	}
	if !n.dedup.MarkNew(inc.ID) {
		return
	}

	alert := NewAlert(inc)
	if err := n.toast.Notify(context.Background(), alert); err != nil {
		loop.Logger().Error("notifier: showing alert failed", err)
	}
	for _, cue := range n.cues {
		cue := cue
		loop.Go(func(ctx context.Context) func() {
			playCue(ctx, cue, alert)
			return nil
		})
	}
}

func playCue(ctx context.Context, cue AlertSink, alert Alert) {
	defer func() { _ = recover() }()
	_ = cue.Notify(ctx, alert)
}

func formatAlert(alert Alert) string {
	return fmt.Sprintf("[%s] %s", alert.Severity, alert.String())
}
