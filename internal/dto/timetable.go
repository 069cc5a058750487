package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// CreateTimetableRequest is the payload for scheduling a slot.
type CreateTimetableRequest struct {
	CourseID  string `json:"courseId" validate:"required"`
	ClassID   string `json:"classId" validate:"required"`
	UnitID    string `json:"unitId" validate:"required"`
	TeacherID string `json:"teacherId" validate:"required"`
	Date      string `json:"date" validate:"required,isodate"`
	Time      string `json:"time" validate:"required,timerange"`
	Term      string `json:"term"`
}

// UpdateTimetableRequest carries the fields to merge onto a stored slot.
type UpdateTimetableRequest struct {
	CourseID  *string `json:"courseId" validate:"omitempty,min=1"`
	ClassID   *string `json:"classId" validate:"omitempty,min=1"`
	UnitID    *string `json:"unitId" validate:"omitempty,min=1"`
	TeacherID *string `json:"teacherId" validate:"omitempty,min=1"`
	Date      *string `json:"date" validate:"omitempty,isodate"`
	Time      *string `json:"time" validate:"omitempty,timerange"`
	Term      *string `json:"term"`
}

// Empty reports whether the update carries no fields.
func (r UpdateTimetableRequest) Empty() bool {
	return r.CourseID == nil && r.ClassID == nil && r.UnitID == nil && r.TeacherID == nil &&
		r.Date == nil && r.Time == nil && r.Term == nil
}

// TimetableQuery binds listing and export query params.
type TimetableQuery struct {
	ClassID   string `form:"classId"`
	TeacherID string `form:"teacherId"`
	Term      string `form:"term"`
	Format    string `form:"format"`
}

// Filter converts the query into a repository filter. A supplied term is
// normalized the same way stored terms are.
func (q TimetableQuery) Filter() models.TimetableFilter {
	filter := models.TimetableFilter{ClassID: q.ClassID, TeacherID: q.TeacherID}
	if q.Term != "" {
		filter.Term = models.NormalizeTerm(q.Term)
	}
	return filter
}
