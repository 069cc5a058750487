package models

import "time"

// Enrollment binds a student to a course, class and unit set for a term.
type Enrollment struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	Term         string    `db:"term" json:"term"`
	UnitIDs      []string  `db:"-" json:"units"`
	TimetableIDs []string  `db:"-" json:"timetables"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentKey identifies the at-most-one enrollment tuple.
type EnrollmentKey struct {
	StudentID string
	CourseID  string
	ClassID   string
	Term      string
}
