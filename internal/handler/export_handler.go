package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wims-bridge-api/internal/service"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
	"github.com/noah-isme/wims-bridge-api/pkg/response"
)

type exportService interface {
	CourseGrades(ctx context.Context, courseID int64, format service.ExportFormat) (*service.ExportResult, error)
	ArchiveCourseGrades(ctx context.Context, courseID int64, format service.ExportFormat) (*service.ArchiveTicket, error)
	OpenDownload(token string) (*service.ExportResult, error)
}

// ExportHandler serves grade downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// CourseGrades godoc
// @Summary Download synchronised course grades
// @Tags Export
// @Produce text/csv
// @Produce application/pdf
// @Param courseID path int true "Course id"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /courses/{courseID}/grades/export [get]
func (h *ExportHandler) CourseGrades(c *gin.Context) {
	courseID, err := strconv.ParseInt(c.Param("courseID"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid course id"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))

	result, err := h.service.CourseGrades(c.Request.Context(), courseID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(200, result.ContentType, result.Content)
}

// Archive godoc
// @Summary Archive course grades and mint a signed download link
// @Tags Export
// @Produce json
// @Param courseID path int true "Course id"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} service.ArchiveTicket
// @Router /courses/{courseID}/grades/export [post]
func (h *ExportHandler) Archive(c *gin.Context) {
	courseID, err := strconv.ParseInt(c.Param("courseID"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid course id"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))

	ticket, err := h.service.ArchiveCourseGrades(c.Request.Context(), courseID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, ticket)
}

// Download godoc
// @Summary Download an archived export via its signed token
// @Tags Export
// @Produce text/csv
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	result, err := h.service.OpenDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(200, result.ContentType, result.Content)
}
