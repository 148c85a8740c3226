package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestActivityFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "name", "class_id"}).
		AddRow(17, 301, "Calculus drills", "9001")
	mock.ExpectQuery("SELECT (.+) FROM activities WHERE id = \\$1").
		WithArgs(int64(17)).
		WillReturnRows(rows)

	activity, err := repo.FindByID(context.Background(), 17)
	require.NoError(t, err)
	assert.Equal(t, int64(301), activity.CourseID)
	require.NotNil(t, activity.ClassID)
	assert.Equal(t, "9001", *activity.ClassID)
	assert.True(t, activity.HasClass())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM activities WHERE id = \\$1").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityListProvisioned(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "name", "class_id"}).
		AddRow(17, 301, "Calculus drills", "9001").
		AddRow(18, 301, "Linear algebra", "9002")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE class_id IS NOT NULL")).
		WillReturnRows(rows)

	activities, err := repo.ListProvisioned(context.Background())
	require.NoError(t, err)
	assert.Len(t, activities, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivitySetClassID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE activities SET class_id = $1")).
		WithArgs("9001", sqlmock.AnyArg(), int64(17)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetClassID(context.Background(), 17, "9001")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivitySetClassIDMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE activities SET class_id = $1")).
		WithArgs("9001", sqlmock.AnyArg(), int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetClassID(context.Background(), 404, "9001")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM activities WHERE id = $1")).
		WithArgs(int64(17)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), 17))
	assert.NoError(t, mock.ExpectationsWereMet())
}
