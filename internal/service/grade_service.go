package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type gradeRepository interface {
	Upsert(ctx context.Context, grades []models.Grade) error
	ListByStudent(ctx context.Context, studentID string) ([]models.Grade, error)
}

// GradeService records unit grades uploaded by teachers.
type GradeService struct {
	repo      gradeRepository
	classes   classReader
	units     unitReader
	users     userReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs a GradeService.
func NewGradeService(repo gradeRepository, classes classReader, units unitReader, users userReader, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, classes: classes, units: units, users: users, validator: validate, logger: logger}
}

// Upload upserts grades for students of a class in a unit the teacher teaches.
func (s *GradeService) Upload(ctx context.Context, teacherID string, req dto.UploadGradesRequest) (*dto.UploadGradesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid grade payload")
	}

	unit, err := findEntity(ctx, "unit", req.UnitID, s.units.FindByID)
	if err != nil {
		return nil, err
	}
	if unit.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unit is not taught by this teacher")
	}
	class, err := findEntity(ctx, "class", req.ClassID, s.classes.FindByID)
	if err != nil {
		return nil, err
	}
	if class.CourseID != unit.CourseID {
		return nil, mismatch("unit-course", "unit does not belong to the class course")
	}

	members := make(map[string]bool, len(class.StudentIDs))
	for _, id := range class.StudentIDs {
		members[id] = true
	}

	term := models.NormalizeTerm(req.Term)
	grades := make([]models.Grade, 0, len(req.Grades))
	for i, entry := range req.Grades {
		studentID := models.CanonicalID(entry.StudentID)
		if !members[studentID] {
			field := fmt.Sprintf("grades[%d].studentId", i)
			return nil, mismatch(field, "student is not a member of the class")
		}
		grades = append(grades, models.Grade{
			StudentID:  studentID,
			UnitID:     unit.ID,
			ClassID:    class.ID,
			Grade:      *entry.Grade,
			Term:       term,
			UploadedBy: teacherID,
		})
	}

	if err := s.repo.Upsert(ctx, grades); err != nil {
		return nil, appErrors.Internal(err, "failed to store grades")
	}
	s.logger.Info("grades uploaded",
		zap.String("unit_id", unit.ID),
		zap.String("class_id", class.ID),
		zap.Int("count", len(grades)),
	)
	return &dto.UploadGradesResult{Saved: len(grades), Grades: grades}, nil
}

// ListForStudent returns every grade recorded for a student.
func (s *GradeService) ListForStudent(ctx context.Context, studentID string) ([]models.Grade, error) {
	if _, err := findUserWithRole(ctx, s.users, "student", studentID, models.RoleStudent); err != nil {
		return nil, err
	}
	grades, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list grades")
	}
	return grades, nil
}
