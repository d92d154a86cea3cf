package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/maribel/gemlens/internal/api/middleware"
	"github.com/maribel/gemlens/internal/domain"
	"github.com/maribel/gemlens/internal/jobs"
	"github.com/maribel/gemlens/internal/service"
)

// UploadHandler handles batch upload submissions.
type UploadHandler struct {
	orchestrator *service.Orchestrator
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(orchestrator *service.Orchestrator) *UploadHandler {
	return &UploadHandler{orchestrator: orchestrator}
}

// Upload handles POST /api/v1/uploads. The request is a multipart form with
// one or more "files" parts and a "mode" field; the response is the queued
// job snapshot.
func (h *UploadHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "multipart form is required: " + err.Error(),
		})
		return
	}

	mode := domain.ProcessingMode(c.PostForm("mode"))
	if mode == "" {
		mode = domain.ModeStandard
	}

	var files []jobs.FileInput
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "failed to open uploaded file " + fh.Filename,
			})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "failed to read uploaded file " + fh.Filename,
			})
			return
		}
		files = append(files, jobs.FileInput{
			Filename: fh.Filename,
			Format:   formatFromFilename(fh.Filename),
			Data:     data,
		})
	}

	job, err := h.orchestrator.ProcessBatch(
		c.Request.Context(),
		middleware.UserID(c),
		mode,
		files,
	)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrInvalidMode),
			errors.Is(err, service.ErrNoFiles),
			errors.Is(err, service.ErrTooManyFiles):
			status = http.StatusBadRequest
		case errors.Is(err, service.ErrFileTooLarge):
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":               job.ID,
		"status":               job.Status,
		"processing_mode":      job.Mode,
		"total_files":          job.TotalFiles,
		"estimated_completion": job.EstimatedCompletion,
	})
}

func formatFromFilename(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}
