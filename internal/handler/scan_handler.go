package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bio-attendance-api/internal/dto"
	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
	"github.com/noah-isme/bio-attendance-api/pkg/response"
)

type scanIngester interface {
	Ingest(ctx context.Context, req dto.IngestScansRequest, now time.Time) (*dto.IngestResult, error)
}

// ScanHandler accepts biometric scan uploads.
type ScanHandler struct {
	service scanIngester
	now     func() time.Time
}

// NewScanHandler builds a new handler.
func NewScanHandler(service scanIngester) *ScanHandler {
	return &ScanHandler{service: service, now: time.Now}
}

// Ingest godoc
// @Summary Upload a batch of biometric scans
// @Description Records every scan, folds them into shift records and regenerates points. Each (employee, shift date) succeeds or fails on its own.
// @Tags Scans
// @Accept json
// @Produce json
// @Param payload body dto.IngestScansRequest true "Scan batch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scans/batches [post]
func (h *ScanHandler) Ingest(c *gin.Context) {
	var req dto.IngestScansRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scan batch payload"))
		return
	}
	result, err := h.service.Ingest(c.Request.Context(), req, h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	})
}
