package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/pkg/response"
)

type syncReportReader interface {
	Report(ctx context.Context, id string) (*models.SyncRunReport, error)
	LastReport(ctx context.Context) (*models.SyncRunReport, error)
}

type syncTrigger interface {
	Trigger() error
}

// SyncHandler exposes the score synchroniser.
type SyncHandler struct {
	reports   syncReportReader
	scheduler syncTrigger
}

// NewSyncHandler builds a new handler.
func NewSyncHandler(reports syncReportReader, scheduler syncTrigger) *SyncHandler {
	return &SyncHandler{reports: reports, scheduler: scheduler}
}

// Trigger godoc
// @Summary Queue a synchronisation run
// @Tags Sync
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /sync/runs [post]
func (h *SyncHandler) Trigger(c *gin.Context) {
	if err := h.scheduler.Trigger(); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"status": "queued"}, nil)
}

// LastRun godoc
// @Summary Get the most recent run report
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/runs/last [get]
func (h *SyncHandler) LastRun(c *gin.Context) {
	report, err := h.reports.LastReport(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Run godoc
// @Summary Get one run report
// @Tags Sync
// @Produce json
// @Param runID path string true "Run id"
// @Success 200 {object} response.Envelope
// @Router /sync/runs/{runID} [get]
func (h *SyncHandler) Run(c *gin.Context) {
	report, err := h.reports.Report(c.Request.Context(), c.Param("runID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
