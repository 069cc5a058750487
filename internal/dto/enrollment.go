package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// EnrollRequest selects a course, class and units for a term. StudentID
// defaults to the authenticated user. Validation happens in the engine so
// failures surface in dependency order.
type EnrollRequest struct {
	StudentID string   `json:"studentId"`
	CourseID  string   `json:"courseId"`
	ClassID   string   `json:"classId"`
	UnitIDs   []string `json:"unitIds"`
	Term      string   `json:"term"`
}

// EnrollmentResult is returned by a successful enrollment. Enrollment is nil
// and Warning is set when no timetable slot matched the selection.
type EnrollmentResult struct {
	Enrollment *models.Enrollment           `json:"enrollment"`
	Timetables []models.TimetableSlotDetail `json:"timetables"`
	Warning    string                       `json:"warning,omitempty"`
}
