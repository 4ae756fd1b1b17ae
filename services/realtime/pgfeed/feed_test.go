package pgfeed

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/attendance"
	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/realtime"
)

func TestParsePayload(t *testing.T) {
	t.Run("incident insert", func(t *testing.T) {
		payload := `{"table":"incidents","event":"INSERT","new":{"id":"0b6f0a0e-8a55-4f0e-9a8f-6f7a2f4f8e11",
			"incident_type":"Sleeping","room_number":"203","severity":"medium","status":"active",
			"detected_at":"2024-03-04T10:15:00.123456+00:00","student_id":null,"video_clip_url":null,
			"created_at":"2024-03-04T10:15:00.2+00:00"},"old":null,"commit_timestamp":"2024-03-04T10:15:00.300000Z"}`

		c, err := ParsePayload(payload)
		require.NoError(t, err)
		assert.Equal(t, incident.TableName, c.Table)
		assert.Equal(t, realtime.EventInsert, c.Event)
		assert.Nil(t, c.Old)
		assert.True(t, c.CommitTime.Equal(time.Date(2024, 3, 4, 10, 15, 0, 300000000, time.UTC)))

		var inc incident.Incident
		require.NoError(t, c.DecodeNew(&inc))
		assert.Equal(t, "0b6f0a0e-8a55-4f0e-9a8f-6f7a2f4f8e11", inc.ID)
		assert.Equal(t, "Sleeping", inc.IncidentType)
		assert.Equal(t, "203", inc.RoomNumber)
		assert.False(t, inc.StudentID.Valid)
		assert.True(t, inc.DetectedAt.Equal(time.Date(2024, 3, 4, 10, 15, 0, 123456000, time.UTC)))
	})

	t.Run("attendance date column", func(t *testing.T) {
		payload := `{"table":"attendance_records","event":"insert","new":{"id":"a","student_id":"b",
			"course_name":"General","status":"present","date":"2024-03-04","created_at":"2024-03-04T10:15:00+00:00"}}`

		c, err := ParsePayload(payload)
		require.NoError(t, err)
		assert.Equal(t, realtime.EventInsert, c.Event)
		assert.False(t, c.CommitTime.IsZero())

		var rec attendance.Record
		require.NoError(t, c.DecodeNew(&rec))
		assert.Equal(t, core.Date{Year: 2024, Month: time.March, Day: 4}, rec.Date)
	})

	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "INSERT incidents"},
		{name: "no table", payload: `{"event":"INSERT"}`},
		{name: "wildcard event", payload: `{"table":"incidents","event":"*"}`},
		{name: "unknown event", payload: `{"table":"incidents","event":"TRUNCATE"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload(tt.payload)
			assert.True(t, errors.Is(err, ErrInvalidPayload), "got %v", err)
		})
	}
}
