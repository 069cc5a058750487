package models

import "time"

// Course is a top-level academic program. Units and Classes are derived
// back-references.
type Course struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Duration  string    `db:"duration" json:"duration"`
	UnitIDs   []string  `db:"-" json:"units"`
	ClassIDs  []string  `db:"-" json:"classes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CourseSummary is the course projection embedded in timetable slots.
type CourseSummary struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Duration string `db:"duration" json:"duration"`
}
