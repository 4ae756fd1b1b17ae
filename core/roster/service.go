package roster

import (
	"context"

	"github.com/pkg/errors"
)

type (
	Repository interface {
		// UpsertStudent, UpsertDoctor and UpsertCourse match on their natural key (code | email).
		UpsertStudent(ctx context.Context, s Student) (Student, error)
		UpsertDoctor(ctx context.Context, d Doctor) (Doctor, error)
		UpsertCourse(ctx context.Context, c Course) (Course, error)
		QueryStudents(ctx context.Context) ([]Student, error)
		QueryDoctors(ctx context.Context) ([]Doctor, error)
		QueryCourses(ctx context.Context) ([]Course, error)
	}

	Service struct {
		repo Repository
	}

	// SeedResult reports what Seed wrote.
	SeedResult struct {
		Students []Student `json:"students"`
		Doctors  []Doctor  `json:"doctors"`
		Courses  []Course  `json:"courses"`
	}
)

var (
	demoDoctors = []Doctor{
		{FullName: "Demo Doctor", Email: "doctor@masomo.local"},
		{FullName: "Dean Demo", Email: "dean@masomo.local"},
	}
	demoStudents = []Student{
		{FullName: "Demo Student", StudentCode: "STU-001"},
		{FullName: "Amani Kabila", StudentCode: "STU-002"},
		{FullName: "Grace Mbuyi", StudentCode: "STU-003"},
	}
	demoCourses = []struct {
		Course
		doctorEmail string
	}{
		{Course: Course{Name: "Computer Vision", CourseCode: "CS-410"}, doctorEmail: "doctor@masomo.local"},
		{Course: Course{Name: "Databases", CourseCode: "CS-220"}, doctorEmail: "doctor@masomo.local"},
		{Course: Course{Name: "Ethics", CourseCode: "GE-101"}, doctorEmail: "dean@masomo.local"},
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Students(ctx context.Context) ([]Student, error) { return svc.repo.QueryStudents(ctx) }
func (svc *Service) Doctors(ctx context.Context) ([]Doctor, error)   { return svc.repo.QueryDoctors(ctx) }
func (svc *Service) Courses(ctx context.Context) ([]Course, error)   { return svc.repo.QueryCourses(ctx) }

// Seed writes the demo reference data. Running it twice does not duplicate rows.
func (svc *Service) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	doctorIDs := make(map[string]string, len(demoDoctors))

	for _, d := range demoDoctors {
		saved, err := svc.repo.UpsertDoctor(ctx, d)
		if err != nil {
			return res, errors.Wrapf(err, "seeding doctor %s", d.Email)
		}
		doctorIDs[saved.Email] = saved.ID
		res.Doctors = append(res.Doctors, saved)
	}
	for _, s := range demoStudents {
		saved, err := svc.repo.UpsertStudent(ctx, s)
		if err != nil {
			return res, errors.Wrapf(err, "seeding student %s", s.StudentCode)
		}
		res.Students = append(res.Students, saved)
	}
	for _, c := range demoCourses {
		course := c.Course
		course.DoctorID = doctorIDs[c.doctorEmail]
		saved, err := svc.repo.UpsertCourse(ctx, course)
		if err != nil {
			return res, errors.Wrapf(err, "seeding course %s", course.CourseCode)
		}
		res.Courses = append(res.Courses, saved)
	}
	return res, nil
}
