package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type dashboardEnrollmentReader interface {
	LatestByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
}

type dashboardUnitReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Unit, error)
}

type dashboardSlotReader interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlotDetail, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.TimetableSlotDetail, error)
}

// DashboardService assembles the per-user landing views.
type DashboardService struct {
	users       userReader
	enrollments dashboardEnrollmentReader
	courses     courseReader
	classes     classReader
	units       dashboardUnitReader
	slots       dashboardSlotReader
	logger      *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(users userReader, enrollments dashboardEnrollmentReader, courses courseReader, classes classReader, units dashboardUnitReader, slots dashboardSlotReader, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:       users,
		enrollments: enrollments,
		courses:     courses,
		classes:     classes,
		units:       units,
		slots:       slots,
		logger:      logger,
	}
}

// Student returns the student's latest enrollment with its timetable.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*dto.StudentDashboard, error) {
	student, err := findUserWithRole(ctx, s.users, "student", studentID, models.RoleStudent)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.LatestByStudent(ctx, student.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("enrollment")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}

	course, err := findEntity(ctx, "course", enrollment.CourseID, s.courses.FindByID)
	if err != nil {
		return nil, err
	}
	class, err := findEntity(ctx, "class", enrollment.ClassID, s.classes.FindByID)
	if err != nil {
		return nil, err
	}

	units, err := s.units.FindByIDs(ctx, enrollment.UnitIDs)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load units")
	}
	summaries := make([]models.UnitSummary, 0, len(units))
	for _, unit := range units {
		summaries = append(summaries, models.UnitSummary{ID: unit.ID, Name: unit.Name, Semester: unit.Semester})
	}

	slots, err := s.slots.ListByIDs(ctx, enrollment.TimetableIDs)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load timetables")
	}
	if slots == nil {
		slots = []models.TimetableSlotDetail{}
	}

	return &dto.StudentDashboard{
		Student:    student.Summary(),
		Enrollment: *enrollment,
		Course:     models.CourseSummary{ID: course.ID, Name: course.Name, Duration: course.Duration},
		Class:      models.ClassSummary{ID: class.ID, Name: class.Name},
		Units:      summaries,
		Timetables: slots,
	}, nil
}

// Teacher returns every slot assigned to the teacher.
func (s *DashboardService) Teacher(ctx context.Context, teacherID string) (*dto.TeacherDashboard, error) {
	teacher, err := findUserWithRole(ctx, s.users, "teacher", teacherID, models.RoleTeacher)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.List(ctx, models.TimetableFilter{TeacherID: teacher.ID})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load timetables")
	}
	if slots == nil {
		slots = []models.TimetableSlotDetail{}
	}
	return &dto.TeacherDashboard{Teacher: teacher.Summary(), Timetables: slots}, nil
}
