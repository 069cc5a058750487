package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const enrollmentSelect = `SELECT e.id, e.student_id, e.course_id, e.class_id, e.term, e.created_at,
ARRAY(SELECT eu.unit_id::text FROM enrollment_units eu WHERE eu.enrollment_id = e.id) AS unit_ids,
ARRAY(SELECT et.slot_id::text FROM enrollment_timetables et WHERE et.enrollment_id = e.id) AS timetable_ids
FROM enrollments e`

type enrollmentRow struct {
	models.Enrollment
	UnitIDs      pq.StringArray `db:"unit_ids"`
	TimetableIDs pq.StringArray `db:"timetable_ids"`
}

func (r enrollmentRow) toModel() models.Enrollment {
	enrollment := r.Enrollment
	enrollment.UnitIDs = append([]string{}, r.UnitIDs...)
	enrollment.TimetableIDs = append([]string{}, r.TimetableIDs...)
	return enrollment
}

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Exists reports whether an enrollment already covers key.
func (r *EnrollmentRepository) Exists(ctx context.Context, key models.EnrollmentKey) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND class_id = $3 AND term = $4)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, key.StudentID, key.CourseID, key.ClassID, key.Term); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// Create inserts the enrollment with its unit and timetable links in one
// transaction. A concurrent duplicate yields ErrEnrollmentExists.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertEnrollment = `INSERT INTO enrollments (id, student_id, course_id, class_id, term, created_at) VALUES (:id, :student_id, :course_id, :class_id, :term, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertEnrollment, enrollment); err != nil {
		return r.wrapWrite("insert enrollment", err)
	}

	const insertUnit = `INSERT INTO enrollment_units (enrollment_id, unit_id) VALUES ($1, $2)`
	for _, unitID := range enrollment.UnitIDs {
		if _, err = tx.ExecContext(ctx, insertUnit, enrollment.ID, unitID); err != nil {
			return r.wrapWrite("insert enrollment unit", err)
		}
	}

	const insertSlot = `INSERT INTO enrollment_timetables (enrollment_id, slot_id) VALUES ($1, $2)`
	for _, slotID := range enrollment.TimetableIDs {
		if _, err = tx.ExecContext(ctx, insertSlot, enrollment.ID, slotID); err != nil {
			return r.wrapWrite("insert enrollment timetable", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

func (r *EnrollmentRepository) wrapWrite(op string, err error) error {
	if mapped := translateUnique(err); mapped != err {
		return mapped
	}
	return fmt.Errorf("%s: %w", op, err)
}

// FindByID loads an enrollment with its links.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return r.findOne(ctx, enrollmentSelect+` WHERE e.id = $1`, id)
}

// LatestByStudent returns the student's most recent enrollment.
func (r *EnrollmentRepository) LatestByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	return r.findOne(ctx, enrollmentSelect+` WHERE e.student_id = $1 ORDER BY e.created_at DESC LIMIT 1`, studentID)
}

func (r *EnrollmentRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.Enrollment, error) {
	var row enrollmentRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	enrollment := row.toModel()
	return &enrollment, nil
}
