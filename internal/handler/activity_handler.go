package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wims-bridge-api/internal/dto"
	"github.com/noah-isme/wims-bridge-api/internal/models"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
	"github.com/noah-isme/wims-bridge-api/pkg/response"
)

type activityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	FindByID(ctx context.Context, id int64) (*models.Activity, error)
	List(ctx context.Context, limit, offset int) ([]models.Activity, int, error)
	Update(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id int64) error
}

type provisioner interface {
	ProvisionClass(ctx context.Context, activity *models.Activity, force bool) (string, string, error)
}

// ActivityHandler manages the bridge-side activity records.
type ActivityHandler struct {
	activities activityRepository
	classes    provisioner
}

// NewActivityHandler builds a new handler.
func NewActivityHandler(activities activityRepository, classes provisioner) *ActivityHandler {
	return &ActivityHandler{activities: activities, classes: classes}
}

func activityID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid activity id")
	}
	return id, nil
}

// Create godoc
// @Summary Register an activity
// @Tags Activities
// @Accept json
// @Produce json
// @Param payload body dto.CreateActivityRequest true "Activity payload"
// @Success 201 {object} response.Envelope
// @Router /activities [post]
func (h *ActivityHandler) Create(c *gin.Context) {
	var req dto.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid activity payload"))
		return
	}

	activity := &models.Activity{
		CourseID:            req.CourseID,
		Name:                req.Name,
		Institution:         req.Institution,
		SupervisorFirstName: req.SupervisorFirstName,
		SupervisorLastName:  req.SupervisorLastName,
		SupervisorEmail:     req.SupervisorEmail,
		Lang:                req.Lang,
		Expiration:          req.Expiration,
	}
	if err := h.activities.Create(c.Request.Context(), activity); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, activity)
}

// List godoc
// @Summary List activities
// @Tags Activities
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	activities, total, err := h.activities.List(c.Request.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activities, &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get one activity
// @Tags Activities
// @Produce json
// @Param id path int true "Activity id"
// @Success 200 {object} response.Envelope
// @Router /activities/{id} [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	id, err := activityID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	activity, err := h.activities.FindByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// Update godoc
// @Summary Update activity settings
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path int true "Activity id"
// @Param payload body dto.UpdateActivityRequest true "Activity payload"
// @Success 200 {object} response.Envelope
// @Router /activities/{id} [put]
func (h *ActivityHandler) Update(c *gin.Context) {
	id, err := activityID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid activity payload"))
		return
	}

	activity, err := h.activities.FindByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if req.Name != "" {
		activity.Name = req.Name
	}
	if req.Institution != "" {
		activity.Institution = req.Institution
	}
	if req.SupervisorFirstName != "" {
		activity.SupervisorFirstName = req.SupervisorFirstName
	}
	if req.SupervisorLastName != "" {
		activity.SupervisorLastName = req.SupervisorLastName
	}
	if req.SupervisorEmail != "" {
		activity.SupervisorEmail = req.SupervisorEmail
	}
	if req.Lang != "" {
		activity.Lang = req.Lang
	}
	if req.Expiration != "" {
		activity.Expiration = req.Expiration
	}
	if err := h.activities.Update(c.Request.Context(), activity); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// Delete godoc
// @Summary Delete an activity record
// @Tags Activities
// @Param id path int true "Activity id"
// @Success 204
// @Router /activities/{id} [delete]
func (h *ActivityHandler) Delete(c *gin.Context) {
	id, err := activityID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.activities.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Provision godoc
// @Summary Ensure the activity has a remote class
// @Tags Activities
// @Produce json
// @Param id path int true "Activity id"
// @Param force query bool false "Recreate the class when the stored one vanished"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/class [post]
func (h *ActivityHandler) Provision(c *gin.Context) {
	id, err := activityID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	activity, err := h.activities.FindByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	qcl, rcl, err := h.classes.ProvisionClass(c.Request.Context(), activity, force)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ProvisionResponse{ClassID: qcl, OwnerToken: rcl}, nil)
}
