package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo/core"
)

// TableName is the store table (and realtime topic) holding attendance records.
const TableName = "attendance_records"

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

var Statuses = []string{string(StatusPresent), string(StatusAbsent), string(StatusLate)}

type Record struct {
	ID         string    `json:"id" db:"id"`
	StudentID  string    `json:"student_id" db:"student_id"`
	CourseName string    `json:"course_name" db:"course_name"`
	Status     Status    `json:"status" db:"status"`
	Date       core.Date `json:"date" db:"date"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"` // UTC
}

// NewRecord contains information needed to record attendance.
// The date is not part of it: only today is recordable.
type NewRecord struct {
	StudentID  string `json:"student_id" validate:"required,uuid"`
	CourseName string `json:"course_name" validate:"required,max=120"`
	Status     Status `json:"status" validate:"required,attendancestatus"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.StudentID = core.CleanString(nr.StudentID, true /* lower */)
	nr.CourseName = core.CleanString(nr.CourseName)
	nr.Status = Status(core.CleanString(string(nr.Status), true /* lower */))

	return validate.Struct(nr)
}

type QueryFilter struct {
	StudentID string    `query:"student_id"`
	Date      core.Date `query:"-"`
	Course    string    `query:"course"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID, true /* lower */)
	qf.Course = core.CleanString(qf.Course)
}
