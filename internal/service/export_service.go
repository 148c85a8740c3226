package service

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/pkg/export"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
)

// ExportFormat names the supported download formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportGradebook interface {
	ListCourseGrades(ctx context.Context, courseID int64) ([]models.ExportGradeRow, error)
}

type exportArchive interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Sign(exportID, name string) (string, time.Time, error)
	Verify(token string) (exportID, name string, err error)
	TTL() time.Duration
}

// ExportService renders synchronised course grades as downloadable files
// and keeps archived copies behind signed download links.
type ExportService struct {
	gradebook exportGradebook
	archive   exportArchive
	signer    downloadSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
}

// NewExportService constructs the service. Archive and signer may be nil,
// in which case only direct downloads are available.
func NewExportService(gradebook exportGradebook, archive exportArchive, signer downloadSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		gradebook: gradebook,
		archive:   archive,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
	}
}

// ExportResult carries rendered bytes plus download metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// CourseGrades renders every synchronised grade of a course.
func (s *ExportService) CourseGrades(ctx context.Context, courseID int64, format ExportFormat) (*ExportResult, error) {
	rows, err := s.gradebook.ListCourseGrades(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no grades synchronised for this course")
	}

	table := export.Table{
		Headers: []string{"Item", "Title", "User ID", "First name", "Last name", "Grade"},
	}
	for _, row := range rows {
		table.AddRow(
			strconv.Itoa(row.ItemNumber),
			row.Title,
			strconv.FormatInt(row.UserID, 10),
			row.FirstName,
			row.LastName,
			strconv.FormatFloat(row.RawGrade, 'f', 2, 64),
		)
	}

	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("course_%d_grades.csv", courseID),
		}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(table, fmt.Sprintf("Course %d grades", courseID))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("course_%d_grades.pdf", courseID),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

// ArchiveTicket references an archived export and the token to fetch it.
type ArchiveTicket struct {
	ExportID  string    `json:"export_id"`
	Filename  string    `json:"filename"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ArchiveCourseGrades renders the course grades, stores the file in the
// archive and returns a signed download token. Expired archives are
// pruned on the way.
func (s *ExportService) ArchiveCourseGrades(ctx context.Context, courseID int64, format ExportFormat) (*ArchiveTicket, error) {
	if s.archive == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export archive not configured")
	}

	result, err := s.CourseGrades(ctx, courseID, format)
	if err != nil {
		return nil, err
	}

	if removed, err := s.archive.CleanupOlderThan(s.signer.TTL()); err != nil {
		s.logger.Warn("archive cleanup failed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Debug("pruned expired archives", zap.Int("count", len(removed)))
	}

	exportID := uuid.NewString()
	name := path.Join(exportID, result.Filename)
	if _, err := s.archive.Save(name, result.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive export")
	}

	token, expiresAt, err := s.signer.Sign(exportID, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	return &ArchiveTicket{
		ExportID:  exportID,
		Filename:  result.Filename,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// OpenDownload validates the token and loads the archived export.
func (s *ExportService) OpenDownload(token string) (*ExportResult, error) {
	if s.archive == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export archive not configured")
	}

	_, name, err := s.signer.Verify(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}

	content, err := s.archive.Read(name)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "archived export no longer available")
	}

	contentType := "text/csv"
	if strings.HasSuffix(name, ".pdf") {
		contentType = "application/pdf"
	}

	return &ExportResult{
		Content:     content,
		ContentType: contentType,
		Filename:    path.Base(name),
	}, nil
}
