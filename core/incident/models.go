package incident

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo/core"
)

// TableName is the store table (and realtime topic) holding incidents.
const TableName = "incidents"

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severityRanks = map[Severity]int{
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// Rank orders severities; unknown severities rank 0.
func (s Severity) Rank() int { return severityRanks[s] }

func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

type Status string

const (
	StatusActive    Status = "active"
	StatusReviewing Status = "reviewing"
	StatusResolved  Status = "resolved"
)

var (
	Severities = []string{string(SeverityLow), string(SeverityMedium), string(SeverityHigh)}
	Statuses   = []string{string(StatusActive), string(StatusReviewing), string(StatusResolved)}

	// OrderingFields are the columns incidents may be ordered by.
	OrderingFields = []string{"detected_at", "created_at", "severity", "room_number", "incident_type"}

	// DefaultOrdering: most recent first.
	DefaultOrdering = []core.DBOrdering{{Field: "detected_at", Ascending: false}}
)

type Incident struct {
	ID           string      `json:"id" db:"id"`
	IncidentType string      `json:"incident_type" db:"incident_type"`
	RoomNumber   string      `json:"room_number" db:"room_number"`
	Severity     Severity    `json:"severity" db:"severity"`
	Status       Status      `json:"status" db:"status"`
	DetectedAt   time.Time   `json:"detected_at" db:"detected_at"` // UTC
	StudentID    null.String `json:"student_id" db:"student_id"`
	VideoClipURL null.String `json:"video_clip_url" db:"video_clip_url"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
}

// NewIncident contains information needed to record a new Incident.
// Status and DetectedAt are always assigned at write time.
type NewIncident struct {
	IncidentType string   `json:"incident_type" validate:"required,max=100"`
	RoomNumber   string   `json:"room_number" validate:"required,max=100"`
	Severity     Severity `json:"severity" validate:"required,severity"`
	StudentID    string   `json:"student_id" validate:"omitempty,uuid"`
	VideoClipURL string   `json:"video_clip_url" validate:"omitempty,url"`
}

func (ni *NewIncident) Validate(validate *validator.Validate) error {
	ni.IncidentType = core.CleanString(ni.IncidentType)
	ni.RoomNumber = core.CleanString(ni.RoomNumber)
	ni.Severity = Severity(core.CleanString(string(ni.Severity), true /* lower */))
	ni.StudentID = core.CleanString(ni.StudentID, true /* lower */)
	ni.VideoClipURL = core.CleanString(ni.VideoClipURL)

	return validate.Struct(ni)
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Status   Status   `query:"status"`
	Severity Severity `query:"severity"`
	Room     string   `query:"room"`
	Limit    int      `query:"limit"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.Severity == "" && qf.Room == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = Status(core.CleanString(string(qf.Status), true /* lower */))
	qf.Severity = Severity(core.CleanString(string(qf.Severity), true /* lower */))
	qf.Room = core.CleanString(qf.Room)
	if qf.Limit < 0 {
		qf.Limit = 0
	}
	if qf.Limit > MaxLimit {
		qf.Limit = MaxLimit
	}
}

// Matches reports whether inc passes the filter (Limit excluded).
// Search does a case-insensitive match on the incident type or "room <number>".
func (qf *QueryFilter) Matches(inc Incident) bool {
	if qf.Status != "" && inc.Status != qf.Status {
		return false
	}
	if qf.Severity != "" && inc.Severity != qf.Severity {
		return false
	}
	if qf.Room != "" && inc.RoomNumber != qf.Room {
		return false
	}
	if qf.Search != "" {
		q := strings.ToLower(qf.Search)
		if !strings.Contains(strings.ToLower(inc.IncidentType), q) &&
			!strings.Contains("room "+strings.ToLower(inc.RoomNumber), q) {
			return false
		}
	}
	return true
}
