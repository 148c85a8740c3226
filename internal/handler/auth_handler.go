package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wims-bridge-api/internal/dto"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
	"github.com/noah-isme/wims-bridge-api/pkg/response"
)

type authService interface {
	Login(login, password string) (string, time.Time, error)
}

// AuthHandler exposes the service-account login endpoint.
type AuthHandler struct {
	service authService
}

// NewAuthHandler builds a new handler.
func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login godoc
// @Summary Authenticate a service account
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	token, expiresAt, err := h.service.Login(req.Login, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.LoginResponse{Token: token, ExpiresAt: expiresAt}, nil)
}
