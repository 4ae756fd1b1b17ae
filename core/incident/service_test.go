package incident_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/realtime"
	"github.com/trezcool/masomo/storage/database/inmem"
)

func TestService(t *testing.T) {
	hub := realtime.NewHub()
	defer func() { _ = hub.Close() }()
	svc := incident.NewService(inmemdb.NewIncidentRepository(inmemdb.Open(hub)))
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, realtime.InsertsOn(incident.TableName))
	require.NoError(t, err)

	create := func(typ, room string, sev incident.Severity) incident.Incident {
		inc, err := svc.Create(ctx, incident.NewIncident{IncidentType: typ, RoomNumber: room, Severity: sev})
		require.NoError(t, err)
		time.Sleep(time.Millisecond) // distinct detected_at
		return inc
	}
	sleeping := create("Sleeping", "203", incident.SeverityMedium)
	phone := create("Phone Detected", "101", incident.SeverityLow)
	fight := create("Fight", "12", "")

	assert.Equal(t, incident.SeverityMedium, fight.Severity, "severity defaults to medium")
	assert.Equal(t, incident.StatusActive, fight.Status)
	assert.Equal(t, time.UTC, fight.DetectedAt.Location())

	// every insert is announced, in order
	for _, want := range []incident.Incident{sleeping, phone, fight} {
		c := <-sub.C()
		var got incident.Incident
		require.NoError(t, c.DecodeNew(&got))
		assert.Equal(t, want.ID, got.ID)
	}

	ids := func(incs []incident.Incident) []string {
		res := make([]string, 0, len(incs))
		for _, inc := range incs {
			res = append(res, inc.ID)
		}
		return res
	}

	tests := []struct {
		name     string
		filter   *incident.QueryFilter
		ordering []core.DBOrdering
		want     []incident.Incident
	}{
		{name: "most recent first", filter: nil, want: []incident.Incident{fight, phone, sleeping}},
		{name: "limit", filter: &incident.QueryFilter{Limit: 2}, want: []incident.Incident{fight, phone}},
		{name: "search type", filter: &incident.QueryFilter{Search: "SLEEP"}, want: []incident.Incident{sleeping}},
		{name: "search room", filter: &incident.QueryFilter{Search: "room 1"}, want: []incident.Incident{fight, phone}},
		{name: "severity", filter: &incident.QueryFilter{Severity: "low"}, want: []incident.Incident{phone}},
		{name: "status", filter: &incident.QueryFilter{Status: incident.StatusResolved}, want: []incident.Incident{}},
		{
			name: "ordering by severity", ordering: []core.DBOrdering{{Field: "severity", Ascending: true}, {Field: "detected_at"}},
			want: []incident.Incident{phone, fight, sleeping},
		},
		{
			name: "unknown ordering ignored", ordering: []core.DBOrdering{{Field: "password"}},
			want: []incident.Incident{fight, phone, sleeping},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Query(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, ids(tt.want), ids(got))
		})
	}

	recent, err := svc.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{fight.ID}, ids(recent))

	got, err := svc.Get(ctx, " "+sleeping.ID+" ")
	require.NoError(t, err)
	assert.Equal(t, sleeping, got)

	_, err = svc.Get(ctx, "nope")
	assert.True(t, core.IsNotFound(err))
}
