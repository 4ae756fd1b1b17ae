package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/incident"
)

const incidentColumns = "id, incident_type, room_number, severity, status, detected_at, student_id, video_clip_url, created_at"

// severity sorts by rank, not alphabetically
var incidentOrderExprs = map[string]string{
	"severity": "CASE severity WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 0 END",
}

type incidentRepository struct {
	db core.DBExecutor
}

var _ incident.Repository = (*incidentRepository)(nil)

func NewIncidentRepository(db core.DBExecutor) incident.Repository {
	return &incidentRepository{db: db}
}

func (repo *incidentRepository) CreateIncident(ctx context.Context, inc incident.Incident) (incident.Incident, error) {
	q := `INSERT INTO incidents (incident_type, room_number, severity, status, detected_at, student_id, video_clip_url)
		VALUES (:incident_type, :room_number, :severity, :status, :detected_at, :student_id, :video_clip_url)
		RETURNING ` + incidentColumns

	stmt, err := repo.db.PrepareNamedContext(ctx, q)
	if err != nil {
		return incident.Incident{}, errors.Wrap(err, "preparing insert")
	}
	defer func() { _ = stmt.Close() }()

	var created incident.Incident
	if err = stmt.GetContext(ctx, &created, inc); err != nil {
		return incident.Incident{}, err
	}
	return created, nil
}

func (repo *incidentRepository) QueryIncidents(ctx context.Context, filter *incident.QueryFilter, ordering []core.DBOrdering) ([]incident.Incident, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Room != "" {
		where = append(where, "room_number = ?")
		args = append(args, filter.Room)
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		where = append(where, "(incident_type ILIKE ? OR 'room ' || room_number ILIKE ?)")
		args = append(args, pattern, pattern)
	}

	q := new(strings.Builder)
	q.WriteString("SELECT " + incidentColumns + " FROM incidents")
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	q.WriteString(orderBy(ordering, incidentOrderExprs))
	if filter.Limit > 0 {
		q.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	incidents := make([]incident.Incident, 0)
	if err := repo.db.SelectContext(ctx, &incidents, repo.db.Rebind(q.String()), args...); err != nil {
		return nil, errors.Wrap(err, "querying incidents")
	}
	return incidents, nil
}

func (repo *incidentRepository) GetIncident(ctx context.Context, id string) (incident.Incident, error) {
	if !isUUID(id) {
		return incident.Incident{}, incident.ErrNotFound
	}
	var inc incident.Incident
	err := repo.db.GetContext(ctx, &inc, "SELECT "+incidentColumns+" FROM incidents WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return incident.Incident{}, incident.ErrNotFound
	}
	if err != nil {
		return incident.Incident{}, errors.Wrap(err, "getting incident")
	}
	return inc, nil
}
