package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// GradeRepository persists unit grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert stores grades keyed by (student, unit, term) in one transaction.
// Existing rows keep their id and creation time.
func (r *GradeRepository) Upsert(ctx context.Context, grades []models.Grade) error {
	if len(grades) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade tx: %w", err)
	}
	const query = `INSERT INTO grades (id, student_id, unit_id, class_id, grade, term, uploaded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (student_id, unit_id, term)
DO UPDATE SET grade = EXCLUDED.grade, class_id = EXCLUDED.class_id, uploaded_by = EXCLUDED.uploaded_by, updated_at = EXCLUDED.updated_at
RETURNING id, created_at, updated_at`
	now := time.Now().UTC()
	for i := range grades {
		g := &grades[i]
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		row := tx.QueryRowxContext(ctx, query, g.ID, g.StudentID, g.UnitID, g.ClassID, g.Grade, g.Term, g.UploadedBy, now)
		if err := row.Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert grade: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade tx: %w", err)
	}
	return nil
}

// ListByStudent returns a student's grades, newest term first.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Grade, error) {
	const query = `SELECT id, student_id, unit_id, class_id, grade, term, uploaded_by, created_at, updated_at FROM grades WHERE student_id = $1 ORDER BY term DESC, unit_id ASC`
	grades := []models.Grade{}
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}
