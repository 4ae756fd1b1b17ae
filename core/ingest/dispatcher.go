package ingest

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core/attendance"
	"github.com/trezcool/masomo/core/incident"
)

// ErrUnknownAction is returned for any action outside the known set. Nothing is written.
var ErrUnknownAction = errors.New("Unknown action")

type (
	IncidentCreator interface {
		Create(ctx context.Context, ni incident.NewIncident) (incident.Incident, error)
	}

	AttendanceCreator interface {
		Create(ctx context.Context, nr attendance.NewRecord) (attendance.Record, error)
	}

	// Result is the success body returned to producers.
	Result struct {
		Success    bool               `json:"success"`
		Incident   *incident.Incident `json:"incident,omitempty"`
		Attendance *attendance.Record `json:"attendance,omitempty"`
	}

	// Dispatcher normalizes producer events and performs exactly one insert per accepted event.
	// It holds no per-request state and is safe for concurrent use.
	Dispatcher struct {
		incidents  IncidentCreator
		attendance AttendanceCreator
		validate   *validator.Validate
	}
)

func NewDispatcher(incidents IncidentCreator, attendance AttendanceCreator, validate *validator.Validate) *Dispatcher {
	return &Dispatcher{
		incidents:  incidents,
		attendance: attendance,
		validate:   validate,
	}
}

func Actions() []Action {
	return []Action{ActionReportIncident, ActionPhoneDetected, ActionBehaviorAlert, ActionUpdateAttendance}
}

// IsIncident reports whether act produces an incident row.
func IsIncident(act Action) bool {
	_, ok := incidentActions[act]
	return ok
}

// NormalizeIncident applies the fallback rules of act to the payload and validates the result.
func (d *Dispatcher) NormalizeIncident(act Action, p Payload) (incident.NewIncident, error) {
	rules, ok := incidentActions[act]
	if !ok {
		return incident.NewIncident{}, ErrUnknownAction
	}
	ni := rules.apply(p)
	if _, err := uuid.Parse(ni.StudentID); err != nil {
		ni.StudentID = "" // weak reference: only well-formed ids are kept
	}
	if d.validate.Var(ni.VideoClipURL, "url") != nil {
		ni.VideoClipURL = "" // same for the clip link
	}
	if err := ni.Validate(d.validate); err != nil {
		return incident.NewIncident{}, err
	}
	return ni, nil
}

// NormalizeAttendance applies the fallback rules of act to the payload and validates the result.
func (d *Dispatcher) NormalizeAttendance(act Action, p Payload) (attendance.NewRecord, error) {
	rules, ok := attendanceActions[act]
	if !ok {
		return attendance.NewRecord{}, ErrUnknownAction
	}
	nr := rules.apply(p)
	if err := nr.Validate(d.validate); err != nil {
		return attendance.NewRecord{}, err
	}
	return nr, nil
}

// Dispatch validates evt and writes it. Validation failures and unknown actions never reach the store.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) (Result, error) {
	if evt.Data == nil {
		evt.Data = Payload{}
	}

	if IsIncident(evt.Action) {
		ni, err := d.NormalizeIncident(evt.Action, evt.Data)
		if err != nil {
			return Result{}, err
		}
		inc, err := d.incidents.Create(ctx, ni)
		if err != nil {
			return Result{}, errors.Wrapf(err, "handling %s", evt.Action)
		}
		return Result{Success: true, Incident: &inc}, nil
	}

	nr, err := d.NormalizeAttendance(evt.Action, evt.Data)
	if err != nil {
		return Result{}, err
	}
	rec, err := d.attendance.Create(ctx, nr)
	if err != nil {
		return Result{}, errors.Wrapf(err, "handling %s", evt.Action)
	}
	return Result{Success: true, Attendance: &rec}, nil
}
