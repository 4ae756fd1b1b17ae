package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate(t *testing.T) {
	d := Date{Year: 2024, Month: time.March, Day: 4}
	assert.Equal(t, "2024-03-04", d.String())
	assert.False(t, d.IsZero())
	assert.True(t, Date{}.IsZero())

	parsed, err := ParseDate("2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
	_, err = ParseDate("04/03/2024")
	assert.Error(t, err)

	data, err := json.Marshal(struct {
		Date Date `json:"date"`
	}{d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-03-04"}`, string(data))

	// late evening in UTC-5 is still the 4th there
	assert.Equal(t, d, DateOf(time.Date(2024, 3, 4, 22, 0, 0, 0, time.FixedZone("EST", -5*3600))))
}

func TestDate_Scan(t *testing.T) {
	want := Date{Year: 2024, Month: time.March, Day: 4}
	tests := []struct {
		name string
		src  interface{}
	}{
		{name: "time", src: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{name: "string", src: "2024-03-04"},
		{name: "bytes", src: []byte("2024-03-04")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Date
			require.NoError(t, got.Scan(tt.src))
			assert.Equal(t, want, got)
		})
	}

	var d Date
	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	v, err := want.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", v)
}
