package tests

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/ingest"
	"github.com/trezcool/masomo/tests"
)

func Test_incidentApi_incidentQuery(t *testing.T) {
	app, stack := setup(t)

	path := func(search, severity, room, ordering string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if severity != "" {
			v.Add("severity", severity)
		}
		if room != "" {
			v.Add("room", room)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		return "/v1/incidents?" + v.Encode()
	}

	create := func(action ingest.Action, data ingest.Payload) incident.Incident {
		inc := testutil.CreateIncident(t, stack, action, data)
		time.Sleep(time.Millisecond) // distinct detected_at
		return inc
	}
	phone := create(ingest.ActionPhoneDetected, ingest.Payload{"room_number": "203"})
	sleeping := create(ingest.ActionBehaviorAlert, ingest.Payload{"behavior": "Sleeping", "room_number": "203", "severity": "high"})
	fight := create(ingest.ActionReportIncident, ingest.Payload{"incident_type": "Fight", "room_number": "B12"})

	tests := []httpTest{
		{name: "Get all (most recent first)", path: "/v1/incidents", wantData: marchallList(t, fight, sleeping, phone)},
		{name: "limit", path: "/v1/incidents?limit=1", wantData: marchallList(t, fight)},
		{name: "search (unknown)", path: path("lol", "", "", ""), wantData: marchallList(t)},
		{name: "search=SLEEP", path: path("SLEEP", "", "", ""), wantData: marchallList(t, sleeping)},
		{name: "search=room 203", path: path("room 203", "", "", ""), wantData: marchallList(t, sleeping, phone)},
		{name: "severity=high", path: path("", "high", "", ""), wantData: marchallList(t, sleeping)},
		{name: "room=B12", path: path("", "", "B12", ""), wantData: marchallList(t, fight)},
		{name: "ordering=detected_at", path: path("", "", "", "detected_at"), wantData: marchallList(t, phone, sleeping, fight)},
		{name: "ordering=-severity", path: path("", "", "", "-severity,detected_at"), wantData: marchallList(t, sleeping, fight, phone)},
		{
			name: "bad limit", path: "/v1/incidents?limit=lots", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: `strconv.ParseInt: parsing "lots": invalid syntax`}),
		},
		{
			name: "retrieve", path: "/v1/incidents/" + sleeping.ID, wantData: marchallObj(t, sleeping),
		},
		{
			name: "retrieve (unknown)", path: "/v1/incidents/nope", wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "incident not found"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			req, rec := newRequest(http.MethodGet, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
