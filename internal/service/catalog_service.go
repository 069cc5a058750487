package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type courseRepository interface {
	courseReader
	Create(ctx context.Context, course *models.Course) error
	List(ctx context.Context) ([]models.Course, error)
}

type classRepository interface {
	classReader
	Create(ctx context.Context, class *models.Class) error
	List(ctx context.Context, courseID string) ([]models.Class, error)
	ListStudents(ctx context.Context, classID string) ([]models.UserSummary, error)
}

type unitRepository interface {
	unitReader
	Create(ctx context.Context, unit *models.Unit) error
	List(ctx context.Context, courseID string) ([]models.Unit, error)
}

// CatalogService manages courses, classes and units.
type CatalogService struct {
	courses   courseRepository
	classes   classRepository
	units     unitRepository
	users     userReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(courses courseRepository, classes classRepository, units unitRepository, users userReader, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{courses: courses, classes: classes, units: units, users: users, validator: validate, logger: logger}
}

// CreateCourse stores a new course.
func (s *CatalogService) CreateCourse(ctx context.Context, req dto.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid course payload")
	}
	course := &models.Course{Name: strings.TrimSpace(req.Name), Duration: strings.TrimSpace(req.Duration)}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Internal(err, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID))
	return course, nil
}

// GetCourse returns a course with its unit and class ids.
func (s *CatalogService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	return findEntity(ctx, "course", id, s.courses.FindByID)
}

// ListCourses returns every course.
func (s *CatalogService) ListCourses(ctx context.Context) ([]models.Course, error) {
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, nil
}

// CreateClass stores a class under an existing course.
func (s *CatalogService) CreateClass(ctx context.Context, req dto.CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid class payload")
	}
	if _, err := findEntity(ctx, "course", req.CourseID, s.courses.FindByID); err != nil {
		return nil, err
	}
	class := &models.Class{
		Name:     strings.TrimSpace(req.Name),
		CourseID: req.CourseID,
		Term:     models.NormalizeTerm(req.Term),
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Internal(err, "failed to create class")
	}
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("course_id", class.CourseID))
	return class, nil
}

// ListClasses returns classes, optionally for one course.
func (s *CatalogService) ListClasses(ctx context.Context, courseID string) ([]models.Class, error) {
	if courseID != "" && !isUUID(courseID) {
		return []models.Class{}, nil
	}
	classes, err := s.classes.List(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list classes")
	}
	return classes, nil
}

// ListClassStudents returns the students enrolled in a class.
func (s *CatalogService) ListClassStudents(ctx context.Context, classID string) ([]models.UserSummary, error) {
	if _, err := findEntity(ctx, "class", classID, s.classes.FindByID); err != nil {
		return nil, err
	}
	students, err := s.classes.ListStudents(ctx, classID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list class students")
	}
	return students, nil
}

// CreateUnit stores a unit taught by a teacher under an existing course.
func (s *CatalogService) CreateUnit(ctx context.Context, req dto.CreateUnitRequest) (*models.Unit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid unit payload")
	}
	if _, err := findEntity(ctx, "course", req.CourseID, s.courses.FindByID); err != nil {
		return nil, err
	}
	if _, err := findUserWithRole(ctx, s.users, "teacher", req.TeacherID, models.RoleTeacher); err != nil {
		return nil, err
	}
	unit := &models.Unit{
		Name:      strings.TrimSpace(req.Name),
		CourseID:  req.CourseID,
		TeacherID: req.TeacherID,
		Semester:  strings.TrimSpace(req.Semester),
	}
	if err := s.units.Create(ctx, unit); err != nil {
		return nil, appErrors.Internal(err, "failed to create unit")
	}
	s.logger.Info("unit created", zap.String("unit_id", unit.ID), zap.String("course_id", unit.CourseID))
	return unit, nil
}

// ListUnits returns units, optionally for one course.
func (s *CatalogService) ListUnits(ctx context.Context, courseID string) ([]models.Unit, error) {
	if courseID != "" && !isUUID(courseID) {
		return []models.Unit{}, nil
	}
	units, err := s.units.List(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list units")
	}
	return units, nil
}
