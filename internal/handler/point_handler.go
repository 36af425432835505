package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bio-attendance-api/internal/dto"
	"github.com/noah-isme/bio-attendance-api/internal/models"
	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
	"github.com/noah-isme/bio-attendance-api/pkg/response"
)

type pointService interface {
	List(ctx context.Context, q dto.PointQuery) ([]models.AttendancePoint, *models.Pagination, error)
	Summary(ctx context.Context, employeeID string) (*models.PointSummary, error)
	Excuse(ctx context.Context, id string, req dto.ExcusePointRequest) (*models.AttendancePoint, error)
}

type expirationService interface {
	Trigger(ctx context.Context, req dto.RunExpirationRequest) (*models.ExpirationSummary, error)
	History(ctx context.Context, limit int) ([]models.ExpirationRun, error)
}

// PointHandler exposes the point ledger and the expiration engine.
type PointHandler struct {
	points     pointService
	expiration expirationService
}

// NewPointHandler builds a new handler.
func NewPointHandler(points pointService, expiration expirationService) *PointHandler {
	return &PointHandler{points: points, expiration: expiration}
}

// List godoc
// @Summary List attendance points
// @Tags Points
// @Produce json
// @Param employee_id query string false "Employee ID"
// @Param date_from query string false "From violation date (YYYY-MM-DD)"
// @Param date_to query string false "To violation date (YYYY-MM-DD)"
// @Param status query string false "active, excused or expired"
// @Param expiration_type query string false "none, sro or gbro"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /points [get]
func (h *PointHandler) List(c *gin.Context) {
	var q dto.PointQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	points, pagination, err := h.points.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points, pagination)
}

// Summary godoc
// @Summary Active point total of an employee
// @Tags Points
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/points/summary [get]
func (h *PointHandler) Summary(c *gin.Context) {
	summary, err := h.points.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Excuse godoc
// @Summary Excuse an active point
// @Tags Points
// @Accept json
// @Produce json
// @Param id path string true "Point ID"
// @Param payload body dto.ExcusePointRequest true "Excuse"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /points/{id}/excuse [post]
func (h *PointHandler) Excuse(c *gin.Context) {
	var req dto.ExcusePointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid excuse payload"))
		return
	}
	point, err := h.points.Excuse(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, point, nil)
}

// RunExpiration godoc
// @Summary Run the point expiration engine
// @Description Applies standard and good-behavior roll-off for the given date. Refused with 409 while another run holds the lock.
// @Tags Points
// @Accept json
// @Produce json
// @Param payload body dto.RunExpirationRequest false "Run date"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /points/expiration-runs [post]
func (h *PointHandler) RunExpiration(c *gin.Context) {
	var req dto.RunExpirationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid expiration payload"))
			return
		}
	}
	summary, err := h.expiration.Trigger(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// History godoc
// @Summary Recent expiration runs
// @Tags Points
// @Produce json
// @Param limit query int false "Number of runs (default 20)"
// @Success 200 {object} response.Envelope
// @Router /points/expiration-runs [get]
func (h *PointHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.expiration.History(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, nil)
}
