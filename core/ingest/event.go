package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Action discriminates producer events.
type Action string

const (
	ActionReportIncident   Action = "report_incident"
	ActionPhoneDetected    Action = "phone_detected"
	ActionBehaviorAlert    Action = "behavior_alert"
	ActionUpdateAttendance Action = "update_attendance"
)

// Event is the body a producer POSTs: {"action": "...", "data": {...}}.
type Event struct {
	Action Action  `json:"action"`
	Data   Payload `json:"data"`
}

// Payload is the action specific, loosely typed producer data.
type Payload map[string]interface{}

// String returns the value at key as a string.
// Producers are not strict about types (eg. room_number: 203), so numbers and booleans are formatted.
func (p Payload) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func (p Payload) Has(key string) bool {
	return strings.TrimSpace(p.String(key)) != ""
}
