package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func slotRequest(class *models.Class, unit *models.Unit, teacher *models.User) dto.CreateTimetableRequest {
	return dto.CreateTimetableRequest{
		CourseID:  class.CourseID,
		ClassID:   class.ID,
		UnitID:    unit.ID,
		TeacherID: teacher.ID,
		Date:      "2024-09-01",
		Time:      "09:00-10:00",
	}
}

func requireAppError(t *testing.T, err error, target *appErrors.Error, field string) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %T", err)
	assert.Equal(t, target.Code, appErr.Code)
	assert.Equal(t, target.Status, appErr.Status)
	if field != "" {
		assert.Equal(t, field, appErr.Field)
	}
	return appErr
}

func TestTimetableServiceCreateDefaultsTerm(t *testing.T) {
	f := newSchoolFixture()
	svc := f.timetableService(nil)

	req := slotRequest(f.class1, f.unit1, f.teacher1)
	req.Term = "  "
	slot, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, slot.ID)
	assert.Equal(t, "Term 1", slot.Term)
	assert.Len(t, f.slots.items, 1)
}

func TestTimetableServiceCreateClassConflict(t *testing.T) {
	f := newSchoolFixture()
	metrics := NewMetricsService()
	svc := f.timetableService(metrics)
	ctx := context.Background()

	first, err := svc.Create(ctx, slotRequest(f.class1, f.unit1, f.teacher1))
	require.NoError(t, err)

	_, err = svc.Create(ctx, slotRequest(f.class1, f.unit2, f.teacher2))
	appErr := requireAppError(t, err, appErrors.ErrScheduleConflict, models.ConflictClass)

	var conflict *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictClass, conflict.Type)
	require.NotNil(t, conflict.Conflict)
	assert.Equal(t, first.ID, conflict.Conflict.ID)
	assert.Equal(t, conflict, appErr.Details)

	assert.Len(t, f.slots.items, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.scheduleConflicts.WithLabelValues(models.ConflictClass)))
}

func TestTimetableServiceCreateTeacherConflictAcrossClasses(t *testing.T) {
	f := newSchoolFixture()
	svc := f.timetableService(nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, slotRequest(f.class1, f.unit1, f.teacher1))
	require.NoError(t, err)

	_, err = svc.Create(ctx, slotRequest(f.class2, f.unit1, f.teacher1))
	requireAppError(t, err, appErrors.ErrScheduleConflict, models.ConflictTeacher)
	assert.Len(t, f.slots.items, 1)
}

func TestTimetableServiceClassConflictReportedBeforeTeacher(t *testing.T) {
	f := newSchoolFixture()
	svc := f.timetableService(nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, slotRequest(f.class1, f.unit1, f.teacher1))
	require.NoError(t, err)

	_, err = svc.Create(ctx, slotRequest(f.class1, f.unit1, f.teacher1))
	requireAppError(t, err, appErrors.ErrScheduleConflict, models.ConflictClass)
}

func TestTimetableServiceScenarioCL1WithSecondTeacher(t *testing.T) {
	f := newSchoolFixture()
	svc := f.timetableService(nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, slotRequest(f.class1, f.unit1, f.teacher1))
	require.NoError(t, err)

	req := slotRequest(f.class1, f.unit1, f.teacher2)
	_, err = svc.Create(ctx, req)
	requireAppError(t, err, appErrors.ErrScheduleConflict, models.ConflictClass)

	req.Time = "10:00-11:00"
	_, err = svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Len(t, f.slots.items, 2)
}

func TestTimetableServiceCreateAdjacentRangesDoNotConflict(t *testing.T) {
	f := newSchoolFixture()
	svc := f.timetableService(nil)
	ctx := context.Background()

	req := slotRequest(f.class1, f.unit1, f.teacher1)
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)

	req.Time = "09:30-10:30"
	_, err = svc.Create(ctx, req)
	require.NoError(t, err)
}

func TestTimetableServiceCreateValidation(t *testing.T) {
	f := newSchoolFixture()
	svc := f.timetableService(nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*dto.CreateTimetableRequest)
		target *appErrors.Error
		field  string
	}{
		{"missing course", func(r *dto.CreateTimetableRequest) { r.CourseID = "" }, appErrors.ErrInvalidInput, "courseId"},
		{"bad date", func(r *dto.CreateTimetableRequest) { r.Date = "01/09/2024" }, appErrors.ErrInvalidInput, "date"},
		{"bad time", func(r *dto.CreateTimetableRequest) { r.Time = "9:00-10:00" }, appErrors.ErrInvalidInput, "time"},
		{"unknown course", func(r *dto.CreateTimetableRequest) { r.CourseID = uuid.NewString() }, appErrors.ErrNotFound, "course"},
		{"unknown class", func(r *dto.CreateTimetableRequest) { r.ClassID = uuid.NewString() }, appErrors.ErrNotFound, "class"},
		{"class of other course", func(r *dto.CreateTimetableRequest) { r.ClassID = f.foreign.ID }, appErrors.ErrMismatch, "class-course"},
		{"unknown unit", func(r *dto.CreateTimetableRequest) { r.UnitID = "not-a-uuid" }, appErrors.ErrNotFound, "unit"},
		{"unit of other course", func(r *dto.CreateTimetableRequest) { r.UnitID = f.otherUnit.ID }, appErrors.ErrMismatch, "unit-course"},
		{"unknown teacher", func(r *dto.CreateTimetableRequest) { r.TeacherID = uuid.NewString() }, appErrors.ErrNotFound, "teacher"},
		{"student as teacher", func(r *dto.CreateTimetableRequest) { r.TeacherID = f.student.ID }, appErrors.ErrInvalidRole, "teacher"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := slotRequest(f.class1, f.unit1, f.teacher1)
			tc.mutate(&req)
			_, err := svc.Create(ctx, req)
			requireAppError(t, err, tc.target, tc.field)
		})
	}
	assert.Empty(t, f.slots.items)
}

func TestTimetableServiceCreateMapsUniqueRace(t *testing.T) {
	f := newSchoolFixture()
	f.slots.createErr = repository.ErrTeacherSlotTaken
	svc := f.timetableService(nil)

	_, err := svc.Create(context.Background(), slotRequest(f.class1, f.unit1, f.teacher1))
	appErr := requireAppError(t, err, appErrors.ErrScheduleConflict, models.ConflictTeacher)
	assert.NotNil(t, appErr.Details)
}

func TestTimetableServiceListFilters(t *testing.T) {
	f := newSchoolFixture()
	f.seedSlot(f.class1, f.unit1, f.teacher1, "2024-09-01", "09:00-10:00", "Term 1")
	f.seedSlot(f.class1, f.unit2, f.teacher2, "2024-09-01", "10:00-11:00", "Term 2")
	f.seedSlot(f.class2, f.unit1, f.teacher1, "2024-09-02", "09:00-10:00", "Term 1")
	svc := f.timetableService(nil)
	ctx := context.Background()

	all, err := svc.List(ctx, models.TimetableFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byClass, err := svc.List(ctx, models.TimetableFilter{ClassID: f.class1.ID})
	require.NoError(t, err)
	assert.Len(t, byClass, 2)

	combined, err := svc.List(ctx, models.TimetableFilter{TeacherID: f.teacher1.ID, Term: "Term 1", ClassID: f.class2.ID})
	require.NoError(t, err)
	require.Len(t, combined, 1)
	assert.Equal(t, "2024-09-02", combined[0].Date)

	malformed, err := svc.List(ctx, models.TimetableFilter{ClassID: "CL1"})
	require.NoError(t, err)
	assert.NotNil(t, malformed)
	assert.Empty(t, malformed)
}

func TestTimetableServiceUpdateRevalidates(t *testing.T) {
	f := newSchoolFixture()
	busy := f.seedSlot(f.class2, f.unit1, f.teacher1, "2024-09-01", "09:00-10:00", "Term 1")
	target := f.seedSlot(f.class1, f.unit2, f.teacher2, "2024-09-01", "09:00-10:00", "Term 1")
	svc := f.timetableService(nil)
	ctx := context.Background()

	teacher := f.teacher1.ID
	_, err := svc.Update(ctx, target.ID, dto.UpdateTimetableRequest{TeacherID: &teacher})
	requireAppError(t, err, appErrors.ErrScheduleConflict, models.ConflictTeacher)

	sameTime := "09:00-10:00"
	term := " Term   2 "
	updated, err := svc.Update(ctx, target.ID, dto.UpdateTimetableRequest{Time: &sameTime, Term: &term})
	require.NoError(t, err)
	assert.Equal(t, "Term 2", updated.Term)
	assert.Equal(t, "Term 2", f.slots.items[target.ID].Term)

	student := f.student.ID
	_, err = svc.Update(ctx, busy.ID, dto.UpdateTimetableRequest{TeacherID: &student})
	requireAppError(t, err, appErrors.ErrInvalidRole, "teacher")

	_, err = svc.Update(ctx, uuid.NewString(), dto.UpdateTimetableRequest{Time: &sameTime})
	requireAppError(t, err, appErrors.ErrNotFound, "timetable")
}

func TestTimetableServiceDeleteReturnsSlot(t *testing.T) {
	f := newSchoolFixture()
	slot := f.seedSlot(f.class1, f.unit1, f.teacher1, "2024-09-01", "09:00-10:00", "Term 1")
	svc := f.timetableService(nil)
	ctx := context.Background()

	deleted, err := svc.Delete(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, slot.ID, deleted.ID)
	assert.Empty(t, f.slots.items)

	_, err = svc.Delete(ctx, slot.ID)
	requireAppError(t, err, appErrors.ErrNotFound, "timetable")
}

func TestTimetableServiceExport(t *testing.T) {
	f := newSchoolFixture()
	f.seedSlot(f.class1, f.unit1, f.teacher1, "2024-09-01", "09:00-10:00", "Term 1")
	svc := f.timetableService(nil)
	ctx := context.Background()

	file, err := svc.Export(ctx, models.TimetableFilter{}, "")
	require.NoError(t, err)
	assert.Equal(t, "timetable.csv", file.Filename)
	assert.True(t, strings.HasPrefix(string(file.Payload), "Date,Time,Term,Course,Class,Unit,Teacher"))
	assert.Contains(t, string(file.Payload), "2024-09-01,09:00-10:00,Term 1")

	pdf, err := svc.Export(ctx, models.TimetableFilter{}, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, strings.HasPrefix(string(pdf.Payload), "%PDF"))

	_, err = svc.Export(ctx, models.TimetableFilter{}, "xlsx")
	requireAppError(t, err, appErrors.ErrInvalidInput, "format")
}

func TestTimetableServiceCreateAcceptsUppercaseIDs(t *testing.T) {
	f := newSchoolFixture()
	svc := f.timetableService(nil)

	req := slotRequest(f.class1, f.unit1, f.teacher1)
	req.CourseID = strings.ToUpper(req.CourseID)
	req.ClassID = "{" + strings.ToUpper(req.ClassID) + "}"
	req.UnitID = strings.ToUpper(req.UnitID)
	req.TeacherID = strings.ReplaceAll(req.TeacherID, "-", "")
	slot, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, f.course.ID, slot.CourseID)
	assert.Equal(t, f.class1.ID, slot.ClassID)
	assert.Equal(t, f.unit1.ID, slot.UnitID)
	assert.Equal(t, f.teacher1.ID, slot.TeacherID)

	again := slotRequest(f.class1, f.unit2, f.teacher2)
	again.ClassID = strings.ToUpper(again.ClassID)
	_, err = svc.Create(context.Background(), again)
	requireAppError(t, err, appErrors.ErrScheduleConflict, "class")

	slots, err := svc.List(context.Background(), models.TimetableFilter{TeacherID: strings.ToUpper(f.teacher1.ID)})
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}
