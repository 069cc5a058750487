package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// GradeEntry is one student's score.
type GradeEntry struct {
	StudentID string   `json:"studentId" validate:"required"`
	Grade     *float64 `json:"grade" validate:"required,min=0,max=100"`
}

// UploadGradesRequest is a teacher's batch grade upload for a unit.
type UploadGradesRequest struct {
	ClassID string       `json:"classId" validate:"required"`
	UnitID  string       `json:"unitId" validate:"required"`
	Term    string       `json:"term"`
	Grades  []GradeEntry `json:"grades" validate:"required,min=1,dive"`
}

// UploadGradesResult lists the stored grades.
type UploadGradesResult struct {
	Saved  int            `json:"saved"`
	Grades []models.Grade `json:"grades"`
}
