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

const classSelect = `SELECT c.id, c.name, c.course_id, c.term, c.created_at,
ARRAY(SELECT cs.student_id::text FROM class_students cs WHERE cs.class_id = c.id ORDER BY cs.joined_at) AS student_ids
FROM classes c`

type classRow struct {
	models.Class
	StudentIDs pq.StringArray `db:"student_ids"`
}

func (r classRow) toModel() models.Class {
	class := r.Class
	class.StudentIDs = append([]string{}, r.StudentIDs...)
	return class
}

// ClassRepository persists classes and their student membership.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	if class.CreatedAt.IsZero() {
		class.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO classes (id, name, course_id, term, created_at) VALUES (:id, :name, :course_id, :term, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	if class.StudentIDs == nil {
		class.StudentIDs = []string{}
	}
	return nil
}

// FindByID loads a class with its member ids.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	var row classRow
	if err := r.db.GetContext(ctx, &row, classSelect+` WHERE c.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	class := row.toModel()
	return &class, nil
}

// List returns classes, optionally restricted to a course.
func (r *ClassRepository) List(ctx context.Context, courseID string) ([]models.Class, error) {
	query := classSelect
	var args []interface{}
	if courseID != "" {
		query += ` WHERE c.course_id = $1`
		args = append(args, courseID)
	}
	query += ` ORDER BY c.name ASC`

	var rows []classRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	classes := make([]models.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.toModel())
	}
	return classes, nil
}

// AddStudent adds a member; an existing membership is left untouched.
func (r *ClassRepository) AddStudent(ctx context.Context, classID, studentID string) error {
	const query = `INSERT INTO class_students (class_id, student_id, joined_at) VALUES ($1, $2, $3) ON CONFLICT (class_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, classID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add class student: %w", err)
	}
	return nil
}

// ListStudents returns the student members of a class.
func (r *ClassRepository) ListStudents(ctx context.Context, classID string) ([]models.UserSummary, error) {
	const query = `SELECT u.id, u.name, u.email, u.role FROM class_students cs
JOIN users u ON u.id = cs.student_id
WHERE cs.class_id = $1 AND u.role = $2
ORDER BY u.name ASC`
	students := []models.UserSummary{}
	if err := r.db.SelectContext(ctx, &students, query, classID, models.RoleStudent); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}
