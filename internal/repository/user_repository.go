package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
)

// UserRepository reads the local user directory. The bridge never writes
// users; enrolment is owned by the course platform.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// ListActive returns every user that may hold a remote account. Deleted and
// suspended users are excluded so their scores are never mapped back.
func (r *UserRepository) ListActive(ctx context.Context) ([]models.LocalUser, error) {
	const query = `SELECT id, first_name, last_name FROM users WHERE deleted = FALSE AND suspended = FALSE ORDER BY id ASC`
	var users []models.LocalUser
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return users, nil
}

// FindByID returns one active user.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.LocalUser, error) {
	const query = `SELECT id, first_name, last_name FROM users WHERE id = $1 AND deleted = FALSE AND suspended = FALSE`
	var user models.LocalUser
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}
