package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loansurv/backend/internal/application/dataset"
	"github.com/loansurv/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// DatasetHandler handles survival dataset API endpoints
type DatasetHandler struct {
	BaseHandler
	rebuildService *dataset.RebuildService
	queryService   *dataset.QueryService
	logger         *zap.Logger
}

// NewDatasetHandler creates a new DatasetHandler
func NewDatasetHandler(
	rebuildService *dataset.RebuildService,
	queryService *dataset.QueryService,
	logger *zap.Logger,
) *DatasetHandler {
	return &DatasetHandler{
		rebuildService: rebuildService,
		queryService:   queryService,
		logger:         logger.Named("dataset_handler"),
	}
}

// RebuildResponse reports the outcome of a completed rebuild
type RebuildResponse struct {
	RunID     string    `json:"run_id"`
	Rows      int       `json:"rows"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// TriggerRebuild runs a full dataset rebuild synchronously and reports the
// produced row count. A rebuild already in flight yields 409.
func (h *DatasetHandler) TriggerRebuild(c *gin.Context) {
	result, err := h.rebuildService.Rebuild(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, RebuildResponse{
		RunID:     result.RunID,
		Rows:      result.Rows,
		StartedAt: result.Started,
		Duration:  result.Duration.Round(time.Millisecond).String(),
	})
}

// ListRecords returns a page of dataset rows
func (h *DatasetHandler) ListRecords(c *gin.Context) {
	var filter dataset.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.queryService.ListRecords(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Records, page.Total, page.Page, page.PageSize)
}

// GetStats returns dataset summary statistics
func (h *DatasetHandler) GetStats(c *gin.Context) {
	stats, err := h.queryService.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}
