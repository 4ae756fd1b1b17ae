package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/masomo/core/attendance"
)

type attendanceRepository struct {
	db    *DB
	table *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db, table: db.attendance}
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	if err := repo.db.checkInsert(ctx); err != nil {
		return attendance.Record{}, err
	}

	repo.table.mutex.Lock()
	rec.ID = newID()
	rec.CreatedAt = now()
	repo.table.t[rec.ID] = &rec
	repo.table.mutex.Unlock()

	repo.db.notify(attendance.TableName, rec)
	return rec, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter *attendance.QueryFilter) ([]attendance.Record, error) {
	repo.table.mutex.RLock()
	defer repo.table.mutex.RUnlock()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.table.t {
		if filter.StudentID != "" && rec.StudentID != filter.StudentID {
			continue
		}
		if !filter.Date.IsZero() && rec.Date != filter.Date {
			continue
		}
		if filter.Course != "" && !strings.EqualFold(rec.CourseName, filter.Course) {
			continue
		}
		records = append(records, *rec)
	}

	// date DESC, created_at DESC
	sort.Slice(records, func(i, j int) bool {
		di, dj := records[i].Date.String(), records[j].Date.String()
		if di != dj {
			return di > dj
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
