package incident

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo/core"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var (
	ErrNotFound = core.NewNotFoundError("incident")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateIncident performs a single atomic insert; the store assigns ID and CreatedAt.
		CreateIncident(ctx context.Context, inc Incident) (Incident, error)
		// QueryIncidents applies AND operation on the QueryFilter fields.
		QueryIncidents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Incident, error)
		GetIncident(ctx context.Context, id string) (Incident, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create records a validated NewIncident as an active incident detected now.
func (svc *Service) Create(ctx context.Context, ni NewIncident) (Incident, error) {
	inc := Incident{
		IncidentType: ni.IncidentType,
		RoomNumber:   ni.RoomNumber,
		Severity:     ni.Severity,
		Status:       StatusActive,
		DetectedAt:   nowFunc().UTC().Truncate(time.Microsecond),
		StudentID:    null.NewString(ni.StudentID, ni.StudentID != ""),
		VideoClipURL: null.NewString(ni.VideoClipURL, ni.VideoClipURL != ""),
	}
	if inc.Severity == "" {
		inc.Severity = SeverityMedium
	}
	created, err := svc.repo.CreateIncident(ctx, inc)
	if err != nil {
		return Incident{}, errors.Wrap(err, "inserting incident")
	}
	return created, nil
}

// Query lists incidents, most recent first unless another ordering is given.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Incident, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	if filter.Limit == 0 {
		filter.Limit = DefaultLimit
	}
	ordering = core.AllowedOrderings(ordering, OrderingFields...)
	if len(ordering) == 0 {
		ordering = DefaultOrdering
	}
	return svc.repo.QueryIncidents(ctx, filter, ordering)
}

// Recent returns the `limit` most recently detected incidents.
func (svc *Service) Recent(ctx context.Context, limit int) ([]Incident, error) {
	return svc.Query(ctx, &QueryFilter{Limit: limit}, DefaultOrdering)
}

func (svc *Service) Get(ctx context.Context, id string) (Incident, error) {
	return svc.repo.GetIncident(ctx, core.CleanString(id, true /* lower */))
}
