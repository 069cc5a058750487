package models

import "time"

// Unit is a subject within a course taught by one teacher.
type Unit struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CourseID  string    `db:"course_id" json:"course_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Semester  string    `db:"semester" json:"semester"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UnitSummary is the unit projection embedded in timetable slots.
type UnitSummary struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Semester string `db:"semester" json:"semester"`
}
