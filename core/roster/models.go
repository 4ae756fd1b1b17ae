package roster

import "time"

// Reference tables: read-only for the ingestion pipeline, seeded by the admin CLI.

type Student struct {
	ID          string    `json:"id" db:"id"`
	FullName    string    `json:"full_name" db:"full_name"`
	StudentCode string    `json:"student_code" db:"student_code"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Doctor struct {
	ID        string    `json:"id" db:"id"`
	FullName  string    `json:"full_name" db:"full_name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Course struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	CourseCode string    `json:"course_code" db:"course_code"`
	DoctorID   string    `json:"doctor_id" db:"doctor_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
