package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wims-bridge-api/internal/dto"
	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/internal/session"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
	"github.com/noah-isme/wims-bridge-api/pkg/response"
)

type classService interface {
	ClassConfig(ctx context.Context, activity *models.Activity) (map[string]string, error)
	UpdateClassConfig(ctx context.Context, activity *models.Activity, classValues, supervisorValues map[string]string) error
	SheetIndex(ctx context.Context, activity *models.Activity) (*models.SheetIndex, error)
	SheetProperties(ctx context.Context, activity *models.Activity, sheet int) (*models.SheetProperties, error)
	ExamProperties(ctx context.Context, activity *models.Activity, exam int) (*models.ExamProperties, error)
	UpdateSheetProperties(ctx context.Context, activity *models.Activity, sheet int, values map[string]string) error
	UpdateExamProperties(ctx context.Context, activity *models.Activity, exam int, values map[string]string) error
	SupervisorURL(ctx context.Context, activity *models.Activity, page session.PageKind, ref int, userIP string) (string, error)
	StudentURL(ctx context.Context, activity *models.Activity, user models.LocalUser, page session.PageKind, ref int, userIP string) (string, error)
	UserScores(ctx context.Context, activity *models.Activity, user models.LocalUser) (map[string]string, error)
	RemoveUser(ctx context.Context, activity *models.Activity, user models.LocalUser) error
	CleanClass(ctx context.Context, activity *models.Activity) error
	Backups(ctx context.Context, activity *models.Activity) (*models.BackupList, error)
	RestoreBackup(ctx context.Context, activity *models.Activity, year int) error
}

type activityFinder interface {
	FindByID(ctx context.Context, id int64) (*models.Activity, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id int64) (*models.LocalUser, error)
}

// ClassHandler exposes the remote-class operations of one activity.
type ClassHandler struct {
	service    classService
	activities activityFinder
	users      userFinder
}

// NewClassHandler builds a new handler.
func NewClassHandler(service classService, activities activityFinder, users userFinder) *ClassHandler {
	return &ClassHandler{service: service, activities: activities, users: users}
}

func (h *ClassHandler) activity(c *gin.Context) (*models.Activity, bool) {
	id, err := activityID(c)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	activity, err := h.activities.FindByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return activity, true
}

func (h *ClassHandler) user(c *gin.Context) (*models.LocalUser, bool) {
	id, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid user id"))
		return nil, false
	}
	user, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return user, true
}

func pageFromQuery(c *gin.Context) (session.PageKind, int, error) {
	page := session.PageKind(c.DefaultQuery("page", string(session.PageHome)))
	switch page {
	case session.PageHome, session.PageGrades:
		return page, 0, nil
	case session.PageWorksheet, session.PageExam:
		ref, err := strconv.Atoi(c.Query("ref"))
		if err != nil || ref < 1 {
			return "", 0, appErrors.Clone(appErrors.ErrValidation, "page requires a positive ref")
		}
		return page, ref, nil
	default:
		return "", 0, appErrors.Clone(appErrors.ErrValidation, "unknown page kind")
	}
}

// Config godoc
// @Summary Get remote class settings
// @Tags Classes
// @Produce json
// @Param id path int true "Activity id"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/class/config [get]
func (h *ClassHandler) Config(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	cfg, err := h.service.ClassConfig(c.Request.Context(), activity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// UpdateConfig godoc
// @Summary Update remote class settings
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path int true "Activity id"
// @Param payload body dto.UpdateClassConfigRequest true "Settings"
// @Success 204
// @Router /activities/{id}/class/config [put]
func (h *ClassHandler) UpdateConfig(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	var req dto.UpdateClassConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	if len(req.Class) == 0 && len(req.Supervisor) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "nothing to update"))
		return
	}
	if err := h.service.UpdateClassConfig(c.Request.Context(), activity, req.Class, req.Supervisor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Sheets godoc
// @Summary List the worksheets and exams of the class
// @Tags Classes
// @Produce json
// @Param id path int true "Activity id"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/class/sheets [get]
func (h *ClassHandler) Sheets(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	index, err := h.service.SheetIndex(c.Request.Context(), activity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, index, nil)
}

func sheetRef(c *gin.Context) (int, error) {
	ref, err := strconv.Atoi(c.Param("sheet"))
	if err != nil || ref < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid sheet number")
	}
	return ref, nil
}

// Worksheet godoc
// @Summary Get worksheet settings
// @Tags Classes
// @Produce json
// @Param id path int true "Activity id"
// @Param sheet path int true "Worksheet number"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/class/worksheets/{sheet} [get]
func (h *ClassHandler) Worksheet(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	ref, err := sheetRef(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	props, err := h.service.SheetProperties(c.Request.Context(), activity, ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, props, nil)
}

// UpdateWorksheet godoc
// @Summary Update worksheet settings
// @Tags Classes
// @Accept json
// @Param id path int true "Activity id"
// @Param sheet path int true "Worksheet number"
// @Param payload body dto.UpdateSheetRequest true "Settings"
// @Success 204
// @Router /activities/{id}/class/worksheets/{sheet} [put]
func (h *ClassHandler) UpdateWorksheet(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	ref, err := sheetRef(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	if err := h.service.UpdateSheetProperties(c.Request.Context(), activity, ref, req.Values); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Exam godoc
// @Summary Get exam settings
// @Tags Classes
// @Produce json
// @Param id path int true "Activity id"
// @Param sheet path int true "Exam number"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/class/exams/{sheet} [get]
func (h *ClassHandler) Exam(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	ref, err := sheetRef(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	props, err := h.service.ExamProperties(c.Request.Context(), activity, ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, props, nil)
}

// UpdateExam godoc
// @Summary Update exam settings
// @Tags Classes
// @Accept json
// @Param id path int true "Activity id"
// @Param sheet path int true "Exam number"
// @Param payload body dto.UpdateSheetRequest true "Settings"
// @Success 204
// @Router /activities/{id}/class/exams/{sheet} [put]
func (h *ClassHandler) UpdateExam(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	ref, err := sheetRef(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	if err := h.service.UpdateExamProperties(c.Request.Context(), activity, ref, req.Values); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SupervisorURL godoc
// @Summary Open a supervisor session
// @Tags Access
// @Produce json
// @Param id path int true "Activity id"
// @Param page query string false "Landing page (home, grades, worksheet, exam)"
// @Param ref query int false "Worksheet or exam number"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/access/supervisor [get]
func (h *ClassHandler) SupervisorURL(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	page, ref, err := pageFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	url, err := h.service.SupervisorURL(c.Request.Context(), activity, page, ref, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AccessURLResponse{URL: url}, nil)
}

// StudentURL godoc
// @Summary Open a student session
// @Tags Access
// @Produce json
// @Param id path int true "Activity id"
// @Param userID path int true "Local user id"
// @Param page query string false "Landing page (home, grades, worksheet, exam)"
// @Param ref query int false "Worksheet or exam number"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/access/users/{userID} [get]
func (h *ClassHandler) StudentURL(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	user, ok := h.user(c)
	if !ok {
		return
	}
	page, ref, err := pageFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	url, err := h.service.StudentURL(c.Request.Context(), activity, *user, page, ref, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AccessURLResponse{URL: url}, nil)
}

// UserScores godoc
// @Summary Get all scores of one user in the class
// @Tags Classes
// @Produce json
// @Param id path int true "Activity id"
// @Param userID path int true "Local user id"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/class/users/{userID}/scores [get]
func (h *ClassHandler) UserScores(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	user, ok := h.user(c)
	if !ok {
		return
	}
	scores, err := h.service.UserScores(c.Request.Context(), activity, *user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scores, nil)
}

// RemoveUser godoc
// @Summary Delete one participant from the class
// @Tags Classes
// @Param id path int true "Activity id"
// @Param userID path int true "Local user id"
// @Success 204
// @Router /activities/{id}/class/users/{userID} [delete]
func (h *ClassHandler) RemoveUser(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	user, ok := h.user(c)
	if !ok {
		return
	}
	if err := h.service.RemoveUser(c.Request.Context(), activity, *user); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Clean godoc
// @Summary Remove all participants and their work from the class
// @Tags Classes
// @Param id path int true "Activity id"
// @Success 204
// @Router /activities/{id}/class/participants [delete]
func (h *ClassHandler) Clean(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	if err := h.service.CleanClass(c.Request.Context(), activity); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Backups godoc
// @Summary List restorable class backups
// @Tags Classes
// @Produce json
// @Param id path int true "Activity id"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/class/backups [get]
func (h *ClassHandler) Backups(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	backups, err := h.service.Backups(c.Request.Context(), activity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, backups, nil)
}

// Restore godoc
// @Summary Restore the class from a yearly backup
// @Tags Classes
// @Accept json
// @Param id path int true "Activity id"
// @Param payload body dto.RestoreBackupRequest true "Backup year"
// @Success 204
// @Router /activities/{id}/class/backups/restore [post]
func (h *ClassHandler) Restore(c *gin.Context) {
	activity, ok := h.activity(c)
	if !ok {
		return
	}
	var req dto.RestoreBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid backup payload"))
		return
	}
	if err := h.service.RestoreBackup(c.Request.Context(), activity, req.Year); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
