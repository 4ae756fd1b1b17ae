package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/core/ingest"
)

const ingestPath = "/functions/v1/camera-feed"

func Test_ingest_rejections(t *testing.T) {
	app, stack := setup(t)

	tests := []httpTest{
		{
			name:     "unknown action",
			body:     []byte(`{"action": "dance", "data": {"room_number": "101"}}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Unknown action"}),
		},
		{
			name:     "missing action",
			body:     []byte(`{"data": {}}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Unknown action"}),
		},
		{
			name:     "report_incident without room",
			body:     []byte(`{"action": "report_incident", "data": {"incident_type": "Fight"}}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"room_number": "this field is required"}),
		},
		{
			name:     "behavior_alert without behavior",
			body:     []byte(`{"action": "behavior_alert", "data": {"room_number": "203"}}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"incident_type": "this field is required"}),
		},
		{
			name:     "attendance without student",
			body:     []byte(`{"action": "update_attendance", "data": {"course_name": "Anatomy"}}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_id": "this field is required"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, ingestPath, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
			checkCORS(t, rec)
		})
	}

	incidents, err := stack.Incidents.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, incidents, "rejected events must not write")
	today, err := stack.Attendance.Query(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, today)
}

func Test_ingest_accepted(t *testing.T) {
	app, stack := setup(t)

	tests := []struct {
		name         string
		path         string
		body         string
		wantType     string
		wantRoom     string
		wantSeverity string
	}{
		{
			name:         "phone_detected defaults",
			path:         ingestPath,
			body:         `{"action": "phone_detected", "data": {}}`,
			wantType:     "Phone Detected",
			wantRoom:     "101",
			wantSeverity: "low",
		},
		{
			name:         "behavior_alert",
			path:         "/v1/camera-feed",
			body:         `{"action": "behavior_alert", "data": {"behavior": "Sleeping", "room_number": 203, "severity": "high"}}`,
			wantType:     "Sleeping",
			wantRoom:     "203",
			wantSeverity: "high",
		},
		{
			name:         "report_incident",
			path:         ingestPath,
			body:         `{"action": "report_incident", "data": {"incident_type": "Fight", "room_number": "B12", "student_id": "not-a-uuid"}}`,
			wantType:     "Fight",
			wantRoom:     "B12",
			wantSeverity: "medium",
		},
		{
			name:         "phone_detected dotted room, bad clip",
			path:         ingestPath,
			body:         `{"action": "phone_detected", "data": {"room_number": "2.04", "video_clip_url": "clip 42"}}`,
			wantType:     "Phone Detected",
			wantRoom:     "2.04",
			wantSeverity: "low",
		},
		{
			name:         "phone_detected slashed room",
			path:         ingestPath,
			body:         `{"action": "phone_detected", "data": {"room_number": "B/12"}}`,
			wantType:     "Phone Detected",
			wantRoom:     "B/12",
			wantSeverity: "low",
		},
		{
			name:         "behavior_alert non-ascii room",
			path:         "/v1/camera-feed",
			body:         `{"action": "behavior_alert", "data": {"behavior": "Eating", "room_number": "Salle É2"}}`,
			wantType:     "Eating",
			wantRoom:     "Salle É2",
			wantSeverity: "medium",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, tt.path, []byte(tt.body))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			checkCORS(t, rec)

			var res ingest.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.True(t, res.Success)
			require.NotNil(t, res.Incident)
			assert.Nil(t, res.Attendance)
			assert.Equal(t, tt.wantType, res.Incident.IncidentType)
			assert.Equal(t, tt.wantRoom, res.Incident.RoomNumber)
			assert.Equal(t, tt.wantSeverity, string(res.Incident.Severity))
			assert.Equal(t, "active", string(res.Incident.Status))
			assert.False(t, res.Incident.StudentID.Valid)

			stored, err := stack.Incidents.Get(context.Background(), res.Incident.ID)
			require.NoError(t, err)
			assert.Equal(t, res.Incident.ID, stored.ID)
		})
	}

	t.Run("update_attendance", func(t *testing.T) {
		body := `{"action": "update_attendance", "data": {"student_id": "3f2b8a8e-5a62-4d3e-9b1c-0c6f3f1c7d21", "course_name": "Anatomy", "date": "1999-01-01"}}`
		req, rec := newRequest(http.MethodPost, ingestPath, []byte(body))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res ingest.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.NotNil(t, res.Attendance)
		assert.Nil(t, res.Incident)
		assert.Equal(t, "present", string(res.Attendance.Status))
		assert.Equal(t, stack.Attendance.Today(), res.Attendance.Date, "only today is recordable")
	})
}

func Test_ingest_storeFailure(t *testing.T) {
	app, stack := setup(t)
	stack.DB.SetInsertError(errors.New("connection refused"))

	tt := httpTest{
		body:     []byte(`{"action": "phone_detected", "data": {"room_number": "101"}}`),
		wantCode: http.StatusInternalServerError,
		wantData: marchallObj(t, httpErr{Error: "connection refused"}),
	}
	req, rec := newRequest(http.MethodPost, ingestPath, tt.body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
	checkCORS(t, rec)

	stack.DB.SetInsertError(nil)
	incidents, err := stack.Incidents.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, incidents)
}

func Test_ingest_preflight(t *testing.T) {
	app, _ := setup(t)

	for _, path := range []string{ingestPath, "/v1/incidents", "/nowhere"} {
		t.Run(path, func(t *testing.T) {
			req, rec := newRequest(http.MethodOptions, path)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
			checkCORS(t, rec)
		})
	}
}
