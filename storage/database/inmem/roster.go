package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo/core/roster"
)

type rosterRepository struct {
	table *rosterTable
}

var _ roster.Repository = (*rosterRepository)(nil)

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{table: db.roster}
}

func (repo *rosterRepository) UpsertStudent(_ context.Context, s roster.Student) (roster.Student, error) {
	repo.table.mutex.Lock()
	defer repo.table.mutex.Unlock()

	if saved, ok := repo.table.students[s.StudentCode]; ok {
		saved.FullName = s.FullName
		return *saved, nil
	}
	s.ID = newID()
	s.CreatedAt = now()
	repo.table.students[s.StudentCode] = &s
	return s, nil
}

func (repo *rosterRepository) UpsertDoctor(_ context.Context, d roster.Doctor) (roster.Doctor, error) {
	repo.table.mutex.Lock()
	defer repo.table.mutex.Unlock()

	if saved, ok := repo.table.doctors[d.Email]; ok {
		saved.FullName = d.FullName
		return *saved, nil
	}
	d.ID = newID()
	d.CreatedAt = now()
	repo.table.doctors[d.Email] = &d
	return d, nil
}

func (repo *rosterRepository) UpsertCourse(_ context.Context, c roster.Course) (roster.Course, error) {
	repo.table.mutex.Lock()
	defer repo.table.mutex.Unlock()

	if saved, ok := repo.table.courses[c.CourseCode]; ok {
		saved.Name = c.Name
		saved.DoctorID = c.DoctorID
		return *saved, nil
	}
	c.ID = newID()
	c.CreatedAt = now()
	repo.table.courses[c.CourseCode] = &c
	return c, nil
}

func (repo *rosterRepository) QueryStudents(context.Context) ([]roster.Student, error) {
	repo.table.mutex.RLock()
	defer repo.table.mutex.RUnlock()

	students := make([]roster.Student, 0, len(repo.table.students))
	for _, s := range repo.table.students {
		students = append(students, *s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].StudentCode < students[j].StudentCode })
	return students, nil
}

func (repo *rosterRepository) QueryDoctors(context.Context) ([]roster.Doctor, error) {
	repo.table.mutex.RLock()
	defer repo.table.mutex.RUnlock()

	doctors := make([]roster.Doctor, 0, len(repo.table.doctors))
	for _, d := range repo.table.doctors {
		doctors = append(doctors, *d)
	}
	sort.Slice(doctors, func(i, j int) bool { return doctors[i].Email < doctors[j].Email })
	return doctors, nil
}

func (repo *rosterRepository) QueryCourses(context.Context) ([]roster.Course, error) {
	repo.table.mutex.RLock()
	defer repo.table.mutex.RUnlock()

	courses := make([]roster.Course, 0, len(repo.table.courses))
	for _, c := range repo.table.courses {
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CourseCode < courses[j].CourseCode })
	return courses, nil
}
