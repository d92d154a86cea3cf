package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/maribel/gemlens/internal/api/middleware"
	"github.com/maribel/gemlens/internal/service"
)

// AnalysisHandler handles persisted analysis endpoints.
type AnalysisHandler struct {
	orchestrator *service.Orchestrator
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(orchestrator *service.Orchestrator) *AnalysisHandler {
	return &AnalysisHandler{orchestrator: orchestrator}
}

// List handles GET /api/v1/analyses: the caller's stored analyses, newest
// first.
func (h *AnalysisHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	recs, err := h.orchestrator.ListAnalyses(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list analyses: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analyses": recs,
		"count":    len(recs),
	})
}

// Get handles GET /api/v1/analyses/:id with the same ownership rule as job
// polling.
func (h *AnalysisHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "analysis ID is required"})
		return
	}

	rec, err := h.orchestrator.GetAnalysis(c.Request.Context(), id, middleware.UserID(c), middleware.UserRole(c))
	switch {
	case errors.Is(err, service.ErrAnalysisNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Stats handles GET /api/v1/stats: stored-analysis counts per category.
func (h *AnalysisHandler) Stats(c *gin.Context) {
	stats, err := h.orchestrator.CategoryStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": stats})
}
