package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/roster"
)

type rosterRepository struct {
	db core.DBExecutor
}

var _ roster.Repository = (*rosterRepository)(nil)

func NewRosterRepository(db core.DBExecutor) roster.Repository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) upsert(ctx context.Context, dest interface{}, q string, arg interface{}) error {
	stmt, err := repo.db.PrepareNamedContext(ctx, q)
	if err != nil {
		return errors.Wrap(err, "preparing upsert")
	}
	defer func() { _ = stmt.Close() }()
	return stmt.GetContext(ctx, dest, arg)
}

func (repo *rosterRepository) UpsertStudent(ctx context.Context, s roster.Student) (roster.Student, error) {
	var saved roster.Student
	err := repo.upsert(ctx, &saved, `INSERT INTO students (full_name, student_code)
		VALUES (:full_name, :student_code)
		ON CONFLICT (student_code) DO UPDATE SET full_name = EXCLUDED.full_name
		RETURNING id, full_name, student_code, created_at`, s)
	return saved, errors.Wrap(err, "upserting student")
}

func (repo *rosterRepository) UpsertDoctor(ctx context.Context, d roster.Doctor) (roster.Doctor, error) {
	var saved roster.Doctor
	err := repo.upsert(ctx, &saved, `INSERT INTO doctors (full_name, email)
		VALUES (:full_name, :email)
		ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name
		RETURNING id, full_name, email, created_at`, d)
	return saved, errors.Wrap(err, "upserting doctor")
}

func (repo *rosterRepository) UpsertCourse(ctx context.Context, c roster.Course) (roster.Course, error) {
	var saved roster.Course
	err := repo.upsert(ctx, &saved, `INSERT INTO courses (name, course_code, doctor_id)
		VALUES (:name, :course_code, CAST(NULLIF(:doctor_id, '') AS uuid))
		ON CONFLICT (course_code) DO UPDATE SET name = EXCLUDED.name, doctor_id = EXCLUDED.doctor_id
		RETURNING id, name, course_code, COALESCE(CAST(doctor_id AS text), '') AS doctor_id, created_at`, c)
	return saved, errors.Wrap(err, "upserting course")
}

func (repo *rosterRepository) QueryStudents(ctx context.Context) ([]roster.Student, error) {
	students := make([]roster.Student, 0)
	err := repo.db.SelectContext(ctx, &students,
		"SELECT id, full_name, student_code, created_at FROM students ORDER BY student_code")
	return students, errors.Wrap(err, "querying students")
}

func (repo *rosterRepository) QueryDoctors(ctx context.Context) ([]roster.Doctor, error) {
	doctors := make([]roster.Doctor, 0)
	err := repo.db.SelectContext(ctx, &doctors,
		"SELECT id, full_name, email, created_at FROM doctors ORDER BY email")
	return doctors, errors.Wrap(err, "querying doctors")
}

func (repo *rosterRepository) QueryCourses(ctx context.Context) ([]roster.Course, error) {
	courses := make([]roster.Course, 0)
	err := repo.db.SelectContext(ctx, &courses,
		"SELECT id, name, course_code, COALESCE(doctor_id::text, '') AS doctor_id, created_at FROM courses ORDER BY course_code")
	return courses, errors.Wrap(err, "querying courses")
}
