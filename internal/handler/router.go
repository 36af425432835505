package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler of the service.
type Handlers struct {
	Scans        *ScanHandler
	ShiftRecords *ShiftRecordHandler
	Points       *PointHandler
	Metrics      *MetricsHandler
}

// RegisterRoutes mounts the probe endpoints on root and the API under api.
func RegisterRoutes(root gin.IRoutes, api *gin.RouterGroup, h Handlers) {
	root.GET("/health", h.Metrics.Health)
	root.GET("/ready", h.Metrics.Ready)
	root.GET("/metrics", h.Metrics.Prometheus)

	api.GET("/metrics/summary", h.Metrics.Summary)

	api.POST("/scans/batches", h.Scans.Ingest)

	records := api.Group("/shift-records")
	records.GET("", h.ShiftRecords.List)
	records.POST("/finalize", h.ShiftRecords.FinalizeDay)
	records.POST("/reclassify", h.ShiftRecords.Reclassify)
	records.GET("/:id/scans", h.ShiftRecords.Scans)
	records.PATCH("/:id/verify", h.ShiftRecords.Verify)

	points := api.Group("/points")
	points.GET("", h.Points.List)
	points.POST("/:id/excuse", h.Points.Excuse)
	points.GET("/expiration-runs", h.Points.History)
	points.POST("/expiration-runs", h.Points.RunExpiration)

	api.GET("/employees/:id/points/summary", h.Points.Summary)
}
