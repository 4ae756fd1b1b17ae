package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
)

var nowFunc = time.Now // mockable

type (
	Repository interface {
		// CreateRecord performs a single atomic insert; the store assigns ID and CreatedAt.
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		QueryRecords(ctx context.Context, filter *QueryFilter) ([]Record, error)
	}

	Service struct {
		repo Repository
		loc  *time.Location
	}
)

// NewService returns a Service recording days in loc (UTC when nil).
func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc}
}

// Today is the server's current calendar day.
func (svc *Service) Today() core.Date {
	return core.DateOf(nowFunc().In(svc.loc))
}

// Create records attendance for today; any other date is never recordable.
func (svc *Service) Create(ctx context.Context, nr NewRecord) (Record, error) {
	rec := Record{
		StudentID:  nr.StudentID,
		CourseName: nr.CourseName,
		Status:     nr.Status,
		Date:       svc.Today(),
	}
	if rec.Status == "" {
		rec.Status = StatusPresent
	}
	created, err := svc.repo.CreateRecord(ctx, rec)
	if err != nil {
		return Record{}, errors.Wrap(err, "inserting attendance")
	}
	return created, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Record, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	return svc.repo.QueryRecords(ctx, filter)
}
