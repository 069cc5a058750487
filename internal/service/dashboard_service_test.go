package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func newDashboardFixture() (*schoolFixture, *DashboardService) {
	f := newSchoolFixture()
	return f, NewDashboardService(f.users, f.enrolled, f.courses, f.classes, f.units, f.slots, nil)
}

func TestDashboardServiceStudentShowsLatestEnrollment(t *testing.T) {
	f, svc := newDashboardFixture()
	ctx := context.Background()

	_, err := svc.Student(ctx, f.student.ID)
	requireAppError(t, err, appErrors.ErrNotFound, "enrollment")

	slot := f.seedSlot(f.class1, f.unit1, f.teacher1, "2024-09-01", "09:00-10:00", "Term 1")
	_, err = f.enrollmentService(nil).Enroll(ctx, enrollRequest(f))
	require.NoError(t, err)

	dashboard, err := svc.Student(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, f.student.ID, dashboard.Student.ID)
	assert.Equal(t, "Science", dashboard.Course.Name)
	assert.Equal(t, "CL1", dashboard.Class.Name)
	assert.Len(t, dashboard.Units, 2)
	require.Len(t, dashboard.Timetables, 1)
	assert.Equal(t, slot.ID, dashboard.Timetables[0].ID)
}

func TestDashboardServiceStudentRoleChecked(t *testing.T) {
	f, svc := newDashboardFixture()

	_, err := svc.Student(context.Background(), f.teacher1.ID)
	requireAppError(t, err, appErrors.ErrInvalidRole, "student")
}

func TestDashboardServiceTeacher(t *testing.T) {
	f, svc := newDashboardFixture()
	ctx := context.Background()

	empty, err := svc.Teacher(ctx, f.teacher2.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty.Timetables)
	assert.Empty(t, empty.Timetables)

	f.seedSlot(f.class1, f.unit1, f.teacher1, "2024-09-01", "09:00-10:00", "Term 1")
	f.seedSlot(f.class2, f.unit1, f.teacher1, "2024-09-02", "09:00-10:00", "Term 1")
	f.seedSlot(f.class2, f.unit2, f.teacher2, "2024-09-03", "09:00-10:00", "Term 1")

	dashboard, err := svc.Teacher(ctx, f.teacher1.ID)
	require.NoError(t, err)
	assert.Equal(t, "T1", dashboard.Teacher.Name)
	assert.Len(t, dashboard.Timetables, 2)

	_, err = svc.Teacher(ctx, f.student.ID)
	requireAppError(t, err, appErrors.ErrInvalidRole, "teacher")
}
