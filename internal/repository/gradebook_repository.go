package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wims-bridge-api/internal/models"
)

// GradebookRepository writes synchronised scores into the course gradebook
// tables. Columns and grades are keyed by (course, item number), so repeated
// runs overwrite in place.
type GradebookRepository struct {
	db *sqlx.DB
}

// NewGradebookRepository constructs the repository.
func NewGradebookRepository(db *sqlx.DB) *GradebookRepository {
	return &GradebookRepository{db: db}
}

// UpsertColumn creates or refreshes one grade column definition.
func (r *GradebookRepository) UpsertColumn(ctx context.Context, column models.GradeColumn) error {
	const query = `INSERT INTO grade_columns (course_id, item_number, title, grade_min, grade_max, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (course_id, item_number)
DO UPDATE SET title = EXCLUDED.title, grade_min = EXCLUDED.grade_min, grade_max = EXCLUDED.grade_max, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, column.CourseID, column.ItemNumber, column.Title, column.GradeMin, column.GradeMax, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert grade column: %w", err)
	}
	return nil
}

// UpsertGrade creates or refreshes one user's raw grade for a column.
func (r *GradebookRepository) UpsertGrade(ctx context.Context, grade models.UserGrade) error {
	const query = `INSERT INTO grades (course_id, item_number, user_id, raw_grade, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (course_id, item_number, user_id)
DO UPDATE SET raw_grade = EXCLUDED.raw_grade, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, grade.CourseID, grade.ItemNumber, grade.UserID, grade.RawGrade, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// ListCourseGrades returns all synchronised grades of a course, joined with
// their column titles, ordered for export.
func (r *GradebookRepository) ListCourseGrades(ctx context.Context, courseID int64) ([]models.ExportGradeRow, error) {
	const query = `SELECT g.item_number, c.title, g.user_id, u.first_name, u.last_name, g.raw_grade
FROM grades g
JOIN grade_columns c ON c.course_id = g.course_id AND c.item_number = g.item_number
JOIN users u ON u.id = g.user_id
WHERE g.course_id = $1
ORDER BY g.item_number ASC, u.last_name ASC, u.first_name ASC`
	var rows []models.ExportGradeRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list course grades: %w", err)
	}
	return rows, nil
}
