package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const slotSelect = `SELECT id, course_id, class_id, unit_id, teacher_id, to_char(slot_date, 'YYYY-MM-DD') AS slot_date, time_range, term, created_at, updated_at FROM timetable_slots`

const slotDetailSelect = `SELECT s.id, to_char(s.slot_date, 'YYYY-MM-DD') AS slot_date, s.time_range, s.term,
co.id AS "course.id", co.name AS "course.name", co.duration AS "course.duration",
cl.id AS "class.id", cl.name AS "class.name",
u.id AS "unit.id", u.name AS "unit.name", u.semester AS "unit.semester",
t.id AS "teacher.id", t.name AS "teacher.name", t.email AS "teacher.email", t.role AS "teacher.role"
FROM timetable_slots s
JOIN courses co ON co.id = s.course_id
JOIN classes cl ON cl.id = s.class_id
JOIN units u ON u.id = s.unit_id
JOIN users t ON t.id = s.teacher_id`

// TimetableRepository provides persistence for timetable slots.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// List returns expanded slots matching every non-empty filter field.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlotDetail, error) {
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("s.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Term != "" {
		conditions = append(conditions, fmt.Sprintf("s.term = $%d", len(args)+1))
		args = append(args, filter.Term)
	}
	if len(filter.UnitIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("s.unit_id = ANY($%d::uuid[])", len(args)+1))
		args = append(args, pq.Array(filter.UnitIDs))
	}

	query := slotDetailSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY s.slot_date ASC, s.time_range ASC"

	slots := []models.TimetableSlotDetail{}
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}
	return slots, nil
}

// ListByIDs returns expanded slots for the given ids.
func (r *TimetableRepository) ListByIDs(ctx context.Context, ids []string) ([]models.TimetableSlotDetail, error) {
	slots := []models.TimetableSlotDetail{}
	if len(ids) == 0 {
		return slots, nil
	}
	query := slotDetailSelect + " WHERE s.id = ANY($1::uuid[]) ORDER BY s.slot_date ASC, s.time_range ASC"
	if err := r.db.SelectContext(ctx, &slots, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list timetable slots by id: %w", err)
	}
	return slots, nil
}

// FindByID loads a slot by id.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableSlot, error) {
	var slot models.TimetableSlot
	if err := r.db.GetContext(ctx, &slot, slotSelect+` WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find timetable slot: %w", err)
	}
	return &slot, nil
}

// FindClassBooking returns the slot occupying the class at date/time, if any.
// excludeID skips the slot being updated.
func (r *TimetableRepository) FindClassBooking(ctx context.Context, classID, date, timeRange, excludeID string) (*models.TimetableSlot, error) {
	return r.findBooking(ctx, "class_id", classID, date, timeRange, excludeID)
}

// FindTeacherBooking returns the slot occupying the teacher at date/time, if any.
func (r *TimetableRepository) FindTeacherBooking(ctx context.Context, teacherID, date, timeRange, excludeID string) (*models.TimetableSlot, error) {
	return r.findBooking(ctx, "teacher_id", teacherID, date, timeRange, excludeID)
}

func (r *TimetableRepository) findBooking(ctx context.Context, column, id, date, timeRange, excludeID string) (*models.TimetableSlot, error) {
	query := fmt.Sprintf("%s WHERE %s = $1 AND slot_date = $2 AND time_range = $3", slotSelect, column)
	args := []interface{}{id, date, timeRange}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"

	var slot models.TimetableSlot
	if err := r.db.GetContext(ctx, &slot, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s booking: %w", strings.TrimSuffix(column, "_id"), err)
	}
	return &slot, nil
}

// Create stores a new slot. A lost race against the unique indexes yields
// ErrClassSlotTaken or ErrTeacherSlotTaken.
func (r *TimetableRepository) Create(ctx context.Context, slot *models.TimetableSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO timetable_slots (id, course_id, class_id, unit_id, teacher_id, slot_date, time_range, term, created_at, updated_at) VALUES (:id, :course_id, :class_id, :unit_id, :teacher_id, :slot_date, :time_range, :term, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		if mapped := translateUnique(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("create timetable slot: %w", err)
	}
	return nil
}

// Update persists every mutable field of slot.
func (r *TimetableRepository) Update(ctx context.Context, slot *models.TimetableSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_slots SET course_id = :course_id, class_id = :class_id, unit_id = :unit_id, teacher_id = :teacher_id, slot_date = :slot_date, time_range = :time_range, term = :term, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, slot)
	if err != nil {
		if mapped := translateUnique(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("update timetable slot: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a slot.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timetable_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable slot: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
