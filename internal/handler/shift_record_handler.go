package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bio-attendance-api/internal/dto"
	"github.com/noah-isme/bio-attendance-api/internal/models"
	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
	"github.com/noah-isme/bio-attendance-api/pkg/response"
)

type shiftRecordService interface {
	List(ctx context.Context, q dto.ShiftRecordQuery) ([]models.ShiftRecord, *models.Pagination, error)
	FinalizeDay(ctx context.Context, req dto.FinalizeDayRequest, now time.Time) (*dto.FinalizeDayResult, error)
	Reclassify(ctx context.Context, req dto.ReclassifyRequest) (*dto.ReclassifyAccepted, error)
	Verify(ctx context.Context, id string, req dto.VerifyShiftRecordRequest) (*models.ShiftRecord, error)
	Scans(ctx context.Context, id string) ([]models.ScanRecord, error)
}

// ShiftRecordHandler exposes shift record endpoints.
type ShiftRecordHandler struct {
	service shiftRecordService
	now     func() time.Time
}

// NewShiftRecordHandler builds a new handler.
func NewShiftRecordHandler(service shiftRecordService) *ShiftRecordHandler {
	return &ShiftRecordHandler{service: service, now: time.Now}
}

// List godoc
// @Summary List shift records
// @Tags ShiftRecords
// @Produce json
// @Param employee_id query string false "Employee ID"
// @Param date_from query string false "From shift date (YYYY-MM-DD)"
// @Param date_to query string false "To shift date (YYYY-MM-DD)"
// @Param status query []string false "Attendance status" collectionFormat(multi)
// @Param provisional query bool false "Only provisional records"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /shift-records [get]
func (h *ShiftRecordHandler) List(c *gin.Context) {
	var q dto.ShiftRecordQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	records, pagination, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// FinalizeDay godoc
// @Summary Sweep absences for a shift date
// @Description Creates records for scheduled employees without scans whose window closed and settles provisional records.
// @Tags ShiftRecords
// @Accept json
// @Produce json
// @Param payload body dto.FinalizeDayRequest true "Shift date"
// @Success 200 {object} response.Envelope
// @Router /shift-records/finalize [post]
func (h *ShiftRecordHandler) FinalizeDay(c *gin.Context) {
	var req dto.FinalizeDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid finalize payload"))
		return
	}
	result, err := h.service.FinalizeDay(c.Request.Context(), req, h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reclassify godoc
// @Summary Queue reclassification of an employee's shifts
// @Tags ShiftRecords
// @Accept json
// @Produce json
// @Param payload body dto.ReclassifyRequest true "Employee and date range"
// @Success 202 {object} response.Envelope
// @Router /shift-records/reclassify [post]
func (h *ShiftRecordHandler) Reclassify(c *gin.Context) {
	var req dto.ReclassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reclassify payload"))
		return
	}
	accepted, err := h.service.Reclassify(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, accepted)
}

// Verify godoc
// @Summary Apply a supervisor correction to a shift record
// @Tags ShiftRecords
// @Accept json
// @Produce json
// @Param id path string true "Shift record ID"
// @Param payload body dto.VerifyShiftRecordRequest true "Correction"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /shift-records/{id}/verify [patch]
func (h *ShiftRecordHandler) Verify(c *gin.Context) {
	var req dto.VerifyShiftRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}
	record, err := h.service.Verify(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Scans godoc
// @Summary In/out scans attributed to a shift record
// @Tags ShiftRecords
// @Produce json
// @Param id path string true "Shift record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /shift-records/{id}/scans [get]
func (h *ShiftRecordHandler) Scans(c *gin.Context) {
	scans, err := h.service.Scans(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scans, nil)
}
