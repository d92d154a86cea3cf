package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maribel/gemlens/internal/config"
	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/pipeline"
)

// ModesHandler exposes the processing-mode catalog.
type ModesHandler struct {
	modes config.ModesConfig
}

// NewModesHandler creates a new modes handler.
func NewModesHandler(modes config.ModesConfig) *ModesHandler {
	return &ModesHandler{modes: modes}
}

type modeInfo struct {
	Mode          domain.ProcessingMode `json:"mode"`
	Stages        []string              `json:"stages"`
	MaxFiles      int                   `json:"max_files"`
	MaxFileSizeMB int                   `json:"max_file_size_mb"`
}

// List handles GET /api/v1/modes.
func (h *ModesHandler) List(c *gin.Context) {
	var out []modeInfo
	for _, mode := range []domain.ProcessingMode{domain.ModeStandard, domain.ModeAdvanced, domain.ModePremium} {
		limits := h.modes.Limits(mode)
		out = append(out, modeInfo{
			Mode:          mode,
			Stages:        pipeline.StagesForMode(mode),
			MaxFiles:      limits.MaxFiles,
			MaxFileSizeMB: limits.MaxFileSizeMB,
		})
	}
	c.JSON(http.StatusOK, gin.H{"modes": out})
}
