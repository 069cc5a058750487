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

const unitColumns = `id, name, course_id, teacher_id, semester, created_at`

// UnitRepository persists course units.
type UnitRepository struct {
	db *sqlx.DB
}

// NewUnitRepository constructs the repository.
func NewUnitRepository(db *sqlx.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// Create inserts a unit.
func (r *UnitRepository) Create(ctx context.Context, unit *models.Unit) error {
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	if unit.CreatedAt.IsZero() {
		unit.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO units (id, name, course_id, teacher_id, semester, created_at) VALUES (:id, :name, :course_id, :teacher_id, :semester, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, unit); err != nil {
		return fmt.Errorf("create unit: %w", err)
	}
	return nil
}

// FindByID loads a unit by id.
func (r *UnitRepository) FindByID(ctx context.Context, id string) (*models.Unit, error) {
	var unit models.Unit
	if err := r.db.GetContext(ctx, &unit, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find unit: %w", err)
	}
	return &unit, nil
}

// List returns units, optionally restricted to a course.
func (r *UnitRepository) List(ctx context.Context, courseID string) ([]models.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units`
	var args []interface{}
	if courseID != "" {
		query += ` WHERE course_id = $1`
		args = append(args, courseID)
	}
	query += ` ORDER BY name ASC`

	units := []models.Unit{}
	if err := r.db.SelectContext(ctx, &units, query, args...); err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}

// FindByIDsAndCourse returns the units among ids that belong to courseID.
func (r *UnitRepository) FindByIDsAndCourse(ctx context.Context, ids []string, courseID string) ([]models.Unit, error) {
	const query = `SELECT ` + unitColumns + ` FROM units WHERE id = ANY($1::uuid[]) AND course_id = $2`
	units := []models.Unit{}
	if err := r.db.SelectContext(ctx, &units, query, pq.Array(ids), courseID); err != nil {
		return nil, fmt.Errorf("find units by course: %w", err)
	}
	return units, nil
}

// FindByIDs returns the units with the given ids ordered by name.
func (r *UnitRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Unit, error) {
	units := []models.Unit{}
	if len(ids) == 0 {
		return units, nil
	}
	const query = `SELECT ` + unitColumns + ` FROM units WHERE id = ANY($1::uuid[]) ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &units, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find units: %w", err)
	}
	return units, nil
}
