package sqlxrepos

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/attendance"
)

const attendanceColumns = "id, student_id, course_name, status, date, created_at"

type attendanceRepository struct {
	db core.DBExecutor
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db core.DBExecutor) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := `INSERT INTO attendance_records (student_id, course_name, status, date)
		VALUES (:student_id, :course_name, :status, :date)
		RETURNING ` + attendanceColumns

	stmt, err := repo.db.PrepareNamedContext(ctx, q)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "preparing insert")
	}
	defer func() { _ = stmt.Close() }()

	var created attendance.Record
	if err = stmt.GetContext(ctx, &created, rec); err != nil {
		return attendance.Record{}, err
	}
	return created, nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter) ([]attendance.Record, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.StudentID != "" {
		if !isUUID(filter.StudentID) {
			return []attendance.Record{}, nil
		}
		where = append(where, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if !filter.Date.IsZero() {
		where = append(where, "date = ?")
		args = append(args, filter.Date)
	}
	if filter.Course != "" {
		where = append(where, "course_name ILIKE ?")
		args = append(args, escapeLike(filter.Course))
	}

	q := "SELECT " + attendanceColumns + " FROM attendance_records"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date DESC, created_at DESC"

	records := make([]attendance.Record, 0)
	if err := repo.db.SelectContext(ctx, &records, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	return records, nil
}
