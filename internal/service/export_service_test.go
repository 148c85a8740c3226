package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
	"github.com/noah-isme/wims-bridge-api/pkg/storage"
)

type exportGradebookStub struct {
	rows []models.ExportGradeRow
}

func (s *exportGradebookStub) ListCourseGrades(_ context.Context, _ int64) ([]models.ExportGradeRow, error) {
	return s.rows, nil
}

func sampleRows() []models.ExportGradeRow {
	return []models.ExportGradeRow{
		{ItemNumber: 1001, Title: "Derivatives", UserID: 1, FirstName: "Ada", LastName: "Lovelace", RawGrade: 8.75},
		{ItemNumber: 1, Title: "Final", UserID: 1, FirstName: "Ada", LastName: "Lovelace", RawGrade: 6.5},
	}
}

func TestExportCourseGradesCSV(t *testing.T) {
	svc := NewExportService(&exportGradebookStub{rows: sampleRows()}, nil, nil, nil)

	result, err := svc.CourseGrades(context.Background(), 301, ExportFormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "course_301_grades.csv", result.Filename)
	content := string(result.Content)
	assert.True(t, strings.HasPrefix(content, "Item,Title,User ID,First name,Last name,Grade"))
	assert.Contains(t, content, "1001,Derivatives,1,Ada,Lovelace,8.75")
}

func TestExportCourseGradesPDF(t *testing.T) {
	svc := NewExportService(&exportGradebookStub{rows: sampleRows()}, nil, nil, nil)

	result, err := svc.CourseGrades(context.Background(), 301, ExportFormatPDF)
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", result.ContentType)
	assert.NotEmpty(t, result.Content)
}

func TestExportCourseGradesEmpty(t *testing.T) {
	svc := NewExportService(&exportGradebookStub{}, nil, nil, nil)

	_, err := svc.CourseGrades(context.Background(), 301, ExportFormatCSV)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestArchiveCourseGradesRoundTrip(t *testing.T) {
	archive, err := storage.NewExportArchive(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewDownloadSigner("secret", time.Hour)
	svc := NewExportService(&exportGradebookStub{rows: sampleRows()}, archive, signer, nil)

	ticket, err := svc.ArchiveCourseGrades(context.Background(), 301, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "course_301_grades.csv", ticket.Filename)
	assert.NotEmpty(t, ticket.Token)

	result, err := svc.OpenDownload(ticket.Token)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "course_301_grades.csv", result.Filename)
	assert.Contains(t, string(result.Content), "Derivatives")
}

func TestOpenDownloadRejectsBadToken(t *testing.T) {
	archive, err := storage.NewExportArchive(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewDownloadSigner("secret", time.Hour)
	svc := NewExportService(&exportGradebookStub{rows: sampleRows()}, archive, signer, nil)

	_, err = svc.OpenDownload("not-a-token")

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestExportCourseGradesUnknownFormat(t *testing.T) {
	svc := NewExportService(&exportGradebookStub{rows: sampleRows()}, nil, nil, nil)

	_, err := svc.CourseGrades(context.Background(), 301, ExportFormat("xml"))

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
