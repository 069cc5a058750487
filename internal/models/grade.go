package models

import "time"

// Grade is a student's score for a unit in a term.
type Grade struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	UnitID     string    `db:"unit_id" json:"unit_id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	Grade      float64   `db:"grade" json:"grade"`
	Term       string    `db:"term" json:"term"`
	UploadedBy string    `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
