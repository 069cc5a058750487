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

const courseSelect = `SELECT c.id, c.name, c.duration, c.created_at,
ARRAY(SELECT u.id::text FROM units u WHERE u.course_id = c.id ORDER BY u.created_at) AS unit_ids,
ARRAY(SELECT cl.id::text FROM classes cl WHERE cl.course_id = c.id ORDER BY cl.created_at) AS class_ids
FROM courses c`

type courseRow struct {
	models.Course
	UnitIDs  pq.StringArray `db:"unit_ids"`
	ClassIDs pq.StringArray `db:"class_ids"`
}

func (r courseRow) toModel() models.Course {
	course := r.Course
	course.UnitIDs = append([]string{}, r.UnitIDs...)
	course.ClassIDs = append([]string{}, r.ClassIDs...)
	return course
}

// CourseRepository persists courses and derives their unit/class references.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO courses (id, name, duration, created_at) VALUES (:id, :name, :duration, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	if course.UnitIDs == nil {
		course.UnitIDs = []string{}
	}
	if course.ClassIDs == nil {
		course.ClassIDs = []string{}
	}
	return nil
}

// FindByID loads a course with its unit and class ids.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var row courseRow
	if err := r.db.GetContext(ctx, &row, courseSelect+` WHERE c.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	course := row.toModel()
	return &course, nil
}

// List returns every course ordered by name.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	var rows []courseRow
	if err := r.db.SelectContext(ctx, &rows, courseSelect+` ORDER BY c.name ASC`); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	courses := make([]models.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toModel())
	}
	return courses, nil
}
