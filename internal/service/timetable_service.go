package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

const timetableCachePrefix = "timetables:"

type timetableRepository interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlotDetail, error)
	FindByID(ctx context.Context, id string) (*models.TimetableSlot, error)
	FindClassBooking(ctx context.Context, classID, date, timeRange, excludeID string) (*models.TimetableSlot, error)
	FindTeacherBooking(ctx context.Context, teacherID, date, timeRange, excludeID string) (*models.TimetableSlot, error)
	Create(ctx context.Context, slot *models.TimetableSlot) error
	Update(ctx context.Context, slot *models.TimetableSlot) error
	Delete(ctx context.Context, id string) error
}

// ExportedFile is a rendered timetable document ready for download.
type ExportedFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// TimetableService schedules slots and prevents double bookings.
type TimetableService struct {
	repo      timetableRepository
	courses   courseReader
	classes   classReader
	units     unitReader
	users     userReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	// generation is bumped by every mutation so a listing read that overlaps
	// one does not stay cached.
	generation atomic.Uint64
}

// NewTimetableService constructs the scheduler. cache and metrics may be nil.
func NewTimetableService(repo timetableRepository, courses courseReader, classes classReader, units unitReader, users userReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		repo:      repo,
		courses:   courses,
		classes:   classes,
		units:     units,
		users:     users,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create validates references, rejects double bookings and stores the slot.
func (s *TimetableService) Create(ctx context.Context, req dto.CreateTimetableRequest) (*models.TimetableSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid timetable payload")
	}

	slot := models.TimetableSlot{
		CourseID:  req.CourseID,
		ClassID:   req.ClassID,
		UnitID:    req.UnitID,
		TeacherID: req.TeacherID,
		Date:      req.Date,
		Time:      req.Time,
		Term:      models.NormalizeTerm(req.Term),
	}
	canonicalizeSlot(&slot)
	if err := s.ensureReferences(ctx, slot); err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, slot, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &slot); err != nil {
		if conflict := s.raceConflict(err, slot); conflict != nil {
			return nil, conflict
		}
		return nil, appErrors.Internal(err, "failed to create timetable")
	}

	s.invalidate(ctx)
	s.logger.Info("timetable slot created",
		zap.String("slot_id", slot.ID),
		zap.String("class_id", slot.ClassID),
		zap.String("teacher_id", slot.TeacherID),
		zap.String("date", slot.Date),
		zap.String("time", slot.Time),
	)
	return &slot, nil
}

// List returns expanded slots matching every supplied filter field.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlotDetail, error) {
	filter.ClassID = models.CanonicalID(filter.ClassID)
	filter.TeacherID = models.CanonicalID(filter.TeacherID)
	filter.UnitIDs = models.CanonicalIDs(filter.UnitIDs)
	if !filterIDsWellFormed(filter) {
		return []models.TimetableSlotDetail{}, nil
	}

	key := timetableCachePrefix + filter.CacheKey()
	var cached []models.TimetableSlotDetail
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	gen := s.generation.Load()
	slots, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list timetables")
	}
	if slots == nil {
		slots = []models.TimetableSlotDetail{}
	}
	if err := s.cache.Set(ctx, key, slots, 0); err == nil && s.generation.Load() != gen {
		_ = s.cache.Delete(ctx, key)
	}
	return slots, nil
}

// Update merges the supplied fields onto the stored slot and re-runs the
// reference and conflict checks against every other slot.
func (s *TimetableService) Update(ctx context.Context, id string, req dto.UpdateTimetableRequest) (*models.TimetableSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid timetable payload")
	}
	existing, err := findEntity(ctx, "timetable", id, s.repo.FindByID)
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		return existing, nil
	}

	updated := *existing
	mergeString(&updated.CourseID, req.CourseID)
	mergeString(&updated.ClassID, req.ClassID)
	mergeString(&updated.UnitID, req.UnitID)
	mergeString(&updated.TeacherID, req.TeacherID)
	mergeString(&updated.Date, req.Date)
	mergeString(&updated.Time, req.Time)
	if req.Term != nil {
		updated.Term = models.NormalizeTerm(*req.Term)
	}
	canonicalizeSlot(&updated)

	if err := s.ensureReferences(ctx, updated); err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, updated, existing.ID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("timetable")
		}
		if conflict := s.raceConflict(err, updated); conflict != nil {
			return nil, conflict
		}
		return nil, appErrors.Internal(err, "failed to update timetable")
	}

	s.invalidate(ctx)
	s.logger.Info("timetable slot updated", zap.String("slot_id", updated.ID))
	return &updated, nil
}

// Delete removes a slot and returns it.
func (s *TimetableService) Delete(ctx context.Context, id string) (*models.TimetableSlot, error) {
	existing, err := findEntity(ctx, "timetable", id, s.repo.FindByID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("timetable")
		}
		return nil, appErrors.Internal(err, "failed to delete timetable")
	}

	s.invalidate(ctx)
	s.logger.Info("timetable slot deleted", zap.String("slot_id", id))
	return existing, nil
}

// Export renders the filtered listing as CSV or PDF.
func (s *TimetableService) Export(ctx context.Context, filter models.TimetableFilter, format string) (*ExportedFile, error) {
	parsed, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, appErrors.WithField(appErrors.ErrInvalidInput, "format", err.Error())
	}
	renderer, err := export.RendererFor(parsed)
	if err != nil {
		return nil, appErrors.WithField(appErrors.ErrInvalidInput, "format", err.Error())
	}

	slots, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(timetableTable(filter, slots))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render timetable export")
	}
	return &ExportedFile{
		Filename:    "timetable." + renderer.Extension(),
		ContentType: renderer.ContentType(),
		Payload:     payload,
	}, nil
}

func (s *TimetableService) ensureReferences(ctx context.Context, slot models.TimetableSlot) error {
	if _, err := findEntity(ctx, "course", slot.CourseID, s.courses.FindByID); err != nil {
		return err
	}
	class, err := findEntity(ctx, "class", slot.ClassID, s.classes.FindByID)
	if err != nil {
		return err
	}
	if class.CourseID != slot.CourseID {
		return mismatch("class-course", "class does not belong to the course")
	}
	unit, err := findEntity(ctx, "unit", slot.UnitID, s.units.FindByID)
	if err != nil {
		return err
	}
	if unit.CourseID != slot.CourseID {
		return mismatch("unit-course", "unit does not belong to the course")
	}
	if _, err := findUserWithRole(ctx, s.users, "teacher", slot.TeacherID, models.RoleTeacher); err != nil {
		return err
	}
	return nil
}

// ensureNoConflict checks the class dimension before the teacher dimension.
func (s *TimetableService) ensureNoConflict(ctx context.Context, slot models.TimetableSlot, excludeID string) error {
	existing, err := s.repo.FindClassBooking(ctx, slot.ClassID, slot.Date, slot.Time, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check class availability")
	}
	if existing != nil {
		return s.conflict(models.ConflictClass, slot, existing)
	}

	existing, err = s.repo.FindTeacherBooking(ctx, slot.TeacherID, slot.Date, slot.Time, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check teacher availability")
	}
	if existing != nil {
		return s.conflict(models.ConflictTeacher, slot, existing)
	}
	return nil
}

// raceConflict maps a unique index violation from the store to the
// matching conflict dimension, or returns nil.
func (s *TimetableService) raceConflict(err error, slot models.TimetableSlot) error {
	switch {
	case errors.Is(err, repository.ErrClassSlotTaken):
		return s.conflict(models.ConflictClass, slot, nil)
	case errors.Is(err, repository.ErrTeacherSlotTaken):
		return s.conflict(models.ConflictTeacher, slot, nil)
	default:
		return nil
	}
}

func (s *TimetableService) conflict(dimension string, slot models.TimetableSlot, existing *models.TimetableSlot) error {
	message := fmt.Sprintf("%s already booked on %s at %s", dimension, slot.Date, slot.Time)
	domainErr := &models.ScheduleConflictError{Type: dimension, Message: message, Conflict: existing}
	s.metrics.RecordScheduleConflict(dimension)
	s.logger.Info("timetable conflict",
		zap.String("dimension", dimension),
		zap.String("date", slot.Date),
		zap.String("time", slot.Time),
	)

	appErr := appErrors.Wrap(domainErr, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, message)
	appErr.Field = dimension
	appErr.Details = domainErr
	return appErr
}

func (s *TimetableService) invalidate(ctx context.Context) {
	s.generation.Add(1)
	_ = s.cache.Invalidate(ctx, timetableCachePrefix+"*")
}

func mergeString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// filterIDsWellFormed reports whether every id in the filter could match a
// stored row; malformed ids match nothing.
func canonicalizeSlot(slot *models.TimetableSlot) {
	slot.CourseID = models.CanonicalID(slot.CourseID)
	slot.ClassID = models.CanonicalID(slot.ClassID)
	slot.UnitID = models.CanonicalID(slot.UnitID)
	slot.TeacherID = models.CanonicalID(slot.TeacherID)
}

func filterIDsWellFormed(filter models.TimetableFilter) bool {
	if filter.ClassID != "" && !isUUID(filter.ClassID) {
		return false
	}
	if filter.TeacherID != "" && !isUUID(filter.TeacherID) {
		return false
	}
	for _, id := range filter.UnitIDs {
		if !isUUID(id) {
			return false
		}
	}
	return true
}

func timetableTable(filter models.TimetableFilter, slots []models.TimetableSlotDetail) export.Table {
	title := "Timetable"
	if filter.Term != "" {
		title += " - " + filter.Term
	}
	table := export.Table{
		Title: title,
		Columns: []export.Column{
			{Key: "date", Title: "Date", Width: 1},
			{Key: "time", Title: "Time", Width: 1.2},
			{Key: "term", Title: "Term", Width: 1},
			{Key: "course", Title: "Course", Width: 2},
			{Key: "class", Title: "Class", Width: 1.5},
			{Key: "unit", Title: "Unit", Width: 2},
			{Key: "teacher", Title: "Teacher", Width: 2},
		},
		Rows: make([]map[string]string, 0, len(slots)),
	}
	for _, slot := range slots {
		table.Rows = append(table.Rows, map[string]string{
			"date":    slot.Date,
			"time":    slot.Time,
			"term":    slot.Term,
			"course":  slot.Course.Name,
			"class":   slot.Class.Name,
			"unit":    slot.Unit.Name,
			"teacher": slot.Teacher.Name,
		})
	}
	return table
}
