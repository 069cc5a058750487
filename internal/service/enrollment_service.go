package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// NoMatchingSlotsWarning is returned when an enrollment selection matches
// no scheduled slot.
const NoMatchingSlotsWarning = "no timetable slots match the selected class, units and term; enrollment was not recorded"

type enrollmentRepository interface {
	Exists(ctx context.Context, key models.EnrollmentKey) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
}

type enrollmentUserStore interface {
	userReader
	SetClass(ctx context.Context, userID, classID string) error
}

type enrollmentClassStore interface {
	classReader
	AddStudent(ctx context.Context, classID, studentID string) error
}

type enrollmentUnitStore interface {
	FindByIDsAndCourse(ctx context.Context, ids []string, courseID string) ([]models.Unit, error)
}

type slotLister interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlotDetail, error)
}

// EnrollmentService enrolls students into a course, class and unit set.
type EnrollmentService struct {
	enrollments enrollmentRepository
	users       enrollmentUserStore
	courses     courseReader
	classes     enrollmentClassStore
	units       enrollmentUnitStore
	slots       slotLister
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewEnrollmentService constructs the enrollment engine.
func NewEnrollmentService(enrollments enrollmentRepository, users enrollmentUserStore, courses courseReader, classes enrollmentClassStore, units enrollmentUnitStore, slots slotLister, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		users:       users,
		courses:     courses,
		classes:     classes,
		units:       units,
		slots:       slots,
		metrics:     metrics,
		logger:      logger,
	}
}

// Enroll validates the selection in dependency order, records the class
// membership and stores the enrollment with its matching slots.
func (s *EnrollmentService) Enroll(ctx context.Context, req dto.EnrollRequest) (*dto.EnrollmentResult, error) {
	result, err := s.enroll(ctx, req)
	s.metrics.RecordEnrollment(enrollmentOutcome(result, err))
	return result, err
}

func (s *EnrollmentService) enroll(ctx context.Context, req dto.EnrollRequest) (*dto.EnrollmentResult, error) {
	req.StudentID = models.CanonicalID(req.StudentID)
	req.CourseID = models.CanonicalID(req.CourseID)
	req.ClassID = models.CanonicalID(req.ClassID)
	req.UnitIDs = models.CanonicalIDs(req.UnitIDs)

	if _, err := findUserWithRole(ctx, s.users, "student", req.StudentID, models.RoleStudent); err != nil {
		return nil, err
	}
	if _, err := findEntity(ctx, "course", req.CourseID, s.courses.FindByID); err != nil {
		return nil, err
	}

	if !isUUID(req.ClassID) {
		return nil, appErrors.WithField(appErrors.ErrInvalidReference, "class", "class id is malformed")
	}
	class, err := findEntity(ctx, "class", req.ClassID, s.classes.FindByID)
	if err != nil {
		return nil, err
	}
	if class.CourseID != req.CourseID {
		return nil, mismatch("class-course", "class does not belong to the course")
	}

	if len(req.UnitIDs) == 0 {
		return nil, appErrors.WithField(appErrors.ErrInvalidInput, "units", "at least one unit is required")
	}
	if err := s.ensureUnitsInCourse(ctx, req.UnitIDs, req.CourseID); err != nil {
		return nil, err
	}

	key := models.EnrollmentKey{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		ClassID:   req.ClassID,
		Term:      models.NormalizeTerm(req.Term),
	}
	exists, err := s.enrollments.Exists(ctx, key)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
	}

	if err := s.users.SetClass(ctx, key.StudentID, key.ClassID); err != nil {
		return nil, appErrors.Internal(err, "failed to assign student class")
	}
	if err := s.classes.AddStudent(ctx, key.ClassID, key.StudentID); err != nil {
		return nil, appErrors.Internal(err, "failed to add student to class")
	}

	slots, err := s.slots.List(ctx, models.TimetableFilter{ClassID: key.ClassID, Term: key.Term, UnitIDs: req.UnitIDs})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load matching timetables")
	}
	if len(slots) == 0 {
		s.logger.Warn("enrollment matched no timetable slots",
			zap.String("student_id", key.StudentID),
			zap.String("class_id", key.ClassID),
			zap.String("term", key.Term),
		)
		return &dto.EnrollmentResult{Timetables: []models.TimetableSlotDetail{}, Warning: NoMatchingSlotsWarning}, nil
	}

	enrollment := &models.Enrollment{
		StudentID:    key.StudentID,
		CourseID:     key.CourseID,
		ClassID:      key.ClassID,
		Term:         key.Term,
		UnitIDs:      append([]string(nil), req.UnitIDs...),
		TimetableIDs: make([]string, 0, len(slots)),
	}
	for _, slot := range slots {
		enrollment.TimetableIDs = append(enrollment.TimetableIDs, slot.ID)
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrEnrollmentExists) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
		return nil, appErrors.Internal(err, "failed to create enrollment")
	}

	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.Int("timetables", len(enrollment.TimetableIDs)),
	)
	return &dto.EnrollmentResult{Enrollment: enrollment, Timetables: slots}, nil
}

// ensureUnitsInCourse requires every requested id to name a distinct unit of
// the course.
func (s *EnrollmentService) ensureUnitsInCourse(ctx context.Context, unitIDs []string, courseID string) error {
	invalid := appErrors.WithField(appErrors.ErrInvalidInput, "units", "one or more units do not belong to the course")
	for _, id := range unitIDs {
		if !isUUID(id) {
			return invalid
		}
	}
	units, err := s.units.FindByIDsAndCourse(ctx, unitIDs, courseID)
	if err != nil {
		return appErrors.Internal(err, "failed to load units")
	}
	if len(units) != len(unitIDs) {
		return invalid
	}
	return nil
}

func enrollmentOutcome(result *dto.EnrollmentResult, err error) string {
	if err != nil {
		switch {
		case errors.Is(err, appErrors.ErrDuplicateEnrollment):
			return EnrollmentOutcomeDuplicate
		case errors.Is(err, appErrors.ErrInternal):
			return EnrollmentOutcomeFailed
		default:
			return EnrollmentOutcomeRejected
		}
	}
	if result == nil || result.Enrollment == nil {
		return EnrollmentOutcomeNoSlots
	}
	return EnrollmentOutcomeCreated
}
