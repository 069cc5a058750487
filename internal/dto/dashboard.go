package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// StudentDashboard summarises a student's latest enrollment.
type StudentDashboard struct {
	Student    models.UserSummary           `json:"student"`
	Enrollment models.Enrollment            `json:"enrollment"`
	Course     models.CourseSummary         `json:"course"`
	Class      models.ClassSummary          `json:"class"`
	Units      []models.UnitSummary         `json:"units"`
	Timetables []models.TimetableSlotDetail `json:"timetables"`
}

// TeacherDashboard lists the slots a teacher is assigned to.
type TeacherDashboard struct {
	Teacher    models.UserSummary           `json:"teacher"`
	Timetables []models.TimetableSlotDetail `json:"timetables"`
}
