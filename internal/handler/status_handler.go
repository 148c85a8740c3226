package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wims-bridge-api/pkg/response"
)

type connectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// StatusHandler reports whether the WIMS server accepts our credentials.
type StatusHandler struct {
	classes connectionChecker
}

// NewStatusHandler builds a new handler.
func NewStatusHandler(classes connectionChecker) *StatusHandler {
	return &StatusHandler{classes: classes}
}

// WimsStatus godoc
// @Summary Check connectivity and credentials against the WIMS server
// @Tags Status
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /wims/status [get]
func (h *StatusHandler) WimsStatus(c *gin.Context) {
	if err := h.classes.CheckConnection(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "connected"}, nil)
}
