package models

import (
	"fmt"
	"time"
)

// Conflict dimensions reported by the scheduler.
const (
	ConflictClass   = "class"
	ConflictTeacher = "teacher"
)

// TimetableSlot is a scheduled session. Date is YYYY-MM-DD and Time is the
// literal "HH:MM-HH:MM" range; both are compared by equality only.
type TimetableSlot struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	UnitID    string    `db:"unit_id" json:"unit_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Date      string    `db:"slot_date" json:"date"`
	Time      string    `db:"time_range" json:"time"`
	Term      string    `db:"term" json:"term"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableSlotDetail is a slot with its references expanded.
type TimetableSlotDetail struct {
	ID      string        `db:"id" json:"id"`
	Date    string        `db:"slot_date" json:"date"`
	Time    string        `db:"time_range" json:"time"`
	Term    string        `db:"term" json:"term"`
	Course  CourseSummary `db:"course" json:"course"`
	Class   ClassSummary  `db:"class" json:"class"`
	Unit    UnitSummary   `db:"unit" json:"unit"`
	Teacher UserSummary   `db:"teacher" json:"teacher"`
}

// TimetableFilter narrows slot listings; empty fields are ignored and the
// rest combine with AND.
type TimetableFilter struct {
	ClassID   string
	TeacherID string
	Term      string
	UnitIDs   []string
}

// CacheKey renders a stable key fragment for the filter.
func (f TimetableFilter) CacheKey() string {
	return fmt.Sprintf("class=%s|teacher=%s|term=%s|units=%v", f.ClassID, f.TeacherID, f.Term, f.UnitIDs)
}

// ScheduleConflictError is returned when a slot collides with an existing one.
type ScheduleConflictError struct {
	Type     string         `json:"type"`
	Message  string         `json:"message"`
	Conflict *TimetableSlot `json:"conflict,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
