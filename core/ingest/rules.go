package ingest

import (
	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/attendance"
	"github.com/trezcool/masomo/core/incident"
)

const (
	DefaultRoomNumber   = "101"
	UnknownIncidentType = "Unknown Incident"
	PhoneIncidentType   = "Phone Detected"
	DefaultCourseName   = "General"
)

// Rule yields a candidate value from the payload; "" means "no value, try the next rule".
type Rule func(p Payload) string

// Field reads a payload key.
func Field(key string) Rule {
	return func(p Payload) string { return p.String(key) }
}

// Const always yields v.
func Const(v string) Rule {
	return func(Payload) string { return v }
}

// Chain is an ordered list of fallbacks evaluated top to bottom.
type Chain []Rule

func (c Chain) Resolve(p Payload) string {
	for _, rule := range c {
		if v := core.CleanString(rule(p)); v != "" {
			return v
		}
	}
	return ""
}

type incidentRules struct {
	IncidentType Chain
	Severity     Chain
	RoomNumber   Chain
	StudentID    Chain
	VideoClipURL Chain
}

type attendanceRules struct {
	StudentID  Chain
	CourseName Chain
	Status     Chain
}

var (
	passthroughStudent = Chain{Field("student_id")}
	passthroughClip    = Chain{Field("video_clip_url")}

	incidentActions = map[Action]incidentRules{
		ActionReportIncident: {
			IncidentType: Chain{Field("incident_type"), Field("behavior"), Const(UnknownIncidentType)},
			Severity:     Chain{Field("severity"), Const(string(incident.SeverityMedium))},
			RoomNumber:   Chain{Field("room_number")},
			StudentID:    passthroughStudent,
			VideoClipURL: passthroughClip,
		},
		ActionPhoneDetected: {
			IncidentType: Chain{Const(PhoneIncidentType)},
			Severity:     Chain{Const(string(incident.SeverityLow))},
			RoomNumber:   Chain{Field("room_number"), Const(DefaultRoomNumber)},
			StudentID:    passthroughStudent,
			VideoClipURL: passthroughClip,
		},
		ActionBehaviorAlert: {
			IncidentType: Chain{Field("behavior")},
			Severity:     Chain{Field("severity"), Const(string(incident.SeverityMedium))},
			RoomNumber:   Chain{Field("room_number"), Const(DefaultRoomNumber)},
			StudentID:    passthroughStudent,
			VideoClipURL: passthroughClip,
		},
	}

	attendanceActions = map[Action]attendanceRules{
		ActionUpdateAttendance: {
			StudentID:  Chain{Field("student_id")},
			CourseName: Chain{Field("course_name"), Const(DefaultCourseName)},
			Status:     Chain{Field("status"), Const(string(attendance.StatusPresent))},
		},
	}
)

func (r incidentRules) apply(p Payload) incident.NewIncident {
	return incident.NewIncident{
		IncidentType: r.IncidentType.Resolve(p),
		RoomNumber:   r.RoomNumber.Resolve(p),
		Severity:     incident.Severity(r.Severity.Resolve(p)),
		StudentID:    r.StudentID.Resolve(p),
		VideoClipURL: r.VideoClipURL.Resolve(p),
	}
}

func (r attendanceRules) apply(p Payload) attendance.NewRecord {
	return attendance.NewRecord{
		StudentID:  r.StudentID.Resolve(p),
		CourseName: r.CourseName.Resolve(p),
		Status:     attendance.Status(r.Status.Resolve(p)),
	}
}
