package models

import "time"

// Class is a cohort of students within a course for a given term.
type Class struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	CourseID   string    `db:"course_id" json:"course_id"`
	Term       string    `db:"term" json:"term"`
	StudentIDs []string  `db:"-" json:"students"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ClassSummary is the class projection embedded in timetable slots.
type ClassSummary struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
