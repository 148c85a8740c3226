package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
)

const activityColumns = `id, course_id, name, class_id, institution, supervisor_first_name, supervisor_last_name, supervisor_email, lang, expiration, created_at, updated_at`

// ActivityRepository persists the bridge-side activity records. Each row
// describes one course activity and, once provisioned, carries the id of the
// remote class bound to it.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create inserts a new activity row.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	const query = `INSERT INTO activities (course_id, name, institution, supervisor_first_name, supervisor_last_name, supervisor_email, lang, expiration, created_at, updated_at)
VALUES (:course_id, :name, :institution, :supervisor_first_name, :supervisor_last_name, :supervisor_email, :lang, :expiration, :created_at, :updated_at)
RETURNING id`
	now := time.Now().UTC()
	activity.CreatedAt = now
	activity.UpdatedAt = now

	rows, err := r.db.NamedQueryContext(ctx, query, activity)
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&activity.ID); err != nil {
			return fmt.Errorf("scan activity id: %w", err)
		}
	}
	return rows.Err()
}

// FindByID returns one activity row.
func (r *ActivityRepository) FindByID(ctx context.Context, id int64) (*models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1`
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find activity: %w", err)
	}
	return &activity, nil
}

// List returns activity rows ordered by id, with the total row count for
// pagination.
func (r *ActivityRepository) List(ctx context.Context, limit, offset int) ([]models.Activity, int, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + activityColumns + ` FROM activities ORDER BY id ASC LIMIT $1 OFFSET $2`
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM activities`); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	return activities, total, nil
}

// ListProvisioned returns every activity already bound to a remote class.
// The score synchroniser iterates exactly this set.
func (r *ActivityRepository) ListProvisioned(ctx context.Context) ([]models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE class_id IS NOT NULL ORDER BY id ASC`
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query); err != nil {
		return nil, fmt.Errorf("list provisioned activities: %w", err)
	}
	return activities, nil
}

// SetClassID records the remote class bound to the activity.
func (r *ActivityRepository) SetClassID(ctx context.Context, id int64, classID string) error {
	const query = `UPDATE activities SET class_id = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, classID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set activity class id: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// Update persists changed activity settings.
func (r *ActivityRepository) Update(ctx context.Context, activity *models.Activity) error {
	const query = `UPDATE activities SET name = :name, institution = :institution, supervisor_first_name = :supervisor_first_name, supervisor_last_name = :supervisor_last_name, supervisor_email = :supervisor_email, lang = :lang, expiration = :expiration, updated_at = :updated_at
WHERE id = :id`
	activity.UpdatedAt = time.Now().UTC()
	result, err := r.db.NamedExecContext(ctx, query, activity)
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// Delete removes the activity row.
func (r *ActivityRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}
