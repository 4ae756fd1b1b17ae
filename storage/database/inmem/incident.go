package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/incident"
)

type incidentRepository struct {
	db    *DB
	table *incidentTable
}

var _ incident.Repository = (*incidentRepository)(nil)

func NewIncidentRepository(db *DB) incident.Repository {
	return &incidentRepository{db: db, table: db.incidents}
}

func (repo *incidentRepository) query() []incident.Incident {
	incidents := make([]incident.Incident, 0, len(repo.table.t))
	for _, inc := range repo.table.t {
		incidents = append(incidents, *inc)
	}
	return incidents
}

func (repo *incidentRepository) CreateIncident(ctx context.Context, inc incident.Incident) (incident.Incident, error) {
	if err := repo.db.checkInsert(ctx); err != nil {
		return incident.Incident{}, err
	}

	repo.table.mutex.Lock()
	inc.ID = newID()
	inc.CreatedAt = now()
	if inc.DetectedAt.IsZero() {
		inc.DetectedAt = inc.CreatedAt
	}
	repo.table.t[inc.ID] = &inc
	repo.table.mutex.Unlock()

	repo.db.notify(incident.TableName, inc)
	return inc, nil
}

func (repo *incidentRepository) QueryIncidents(_ context.Context, filter *incident.QueryFilter, ordering []core.DBOrdering) ([]incident.Incident, error) {
	repo.table.mutex.RLock()
	all := repo.query()
	repo.table.mutex.RUnlock()

	incidents := make([]incident.Incident, 0, len(all))
	for _, inc := range all {
		if filter.Matches(inc) {
			incidents = append(incidents, inc)
		}
	}

	// id as the last key so equal rows keep a stable order
	sort.SliceStable(incidents, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compareIncidents(incidents[i], incidents[j], ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return incidents[i].ID < incidents[j].ID
	})

	if filter.Limit > 0 && len(incidents) > filter.Limit {
		incidents = incidents[:filter.Limit]
	}
	return incidents, nil
}

func (repo *incidentRepository) GetIncident(_ context.Context, id string) (incident.Incident, error) {
	repo.table.mutex.RLock()
	defer repo.table.mutex.RUnlock()

	if inc, ok := repo.table.t[id]; ok {
		return *inc, nil
	}
	return incident.Incident{}, incident.ErrNotFound
}

func compareIncidents(a, b incident.Incident, field string) int {
	switch field {
	case "detected_at":
		return compareTimes(a.DetectedAt.UnixNano(), b.DetectedAt.UnixNano())
	case "created_at":
		return compareTimes(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	case "severity":
		return a.Severity.Rank() - b.Severity.Rank()
	case "room_number":
		return strings.Compare(a.RoomNumber, b.RoomNumber)
	case "incident_type":
		return strings.Compare(a.IncidentType, b.IncidentType)
	}
	return 0
}

func compareTimes(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
