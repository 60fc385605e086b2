package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/rectify/internal/adapter/store"
	"go.ngs.io/rectify/internal/domain"
	"go.ngs.io/rectify/internal/usecase"
)

// Handler handles HTTP requests for dataset rectification.
type Handler struct {
	rectifyUC *usecase.RectifyUseCase
}

// NewHandler creates a new HTTP handler.
func NewHandler(rectifyUC *usecase.RectifyUseCase) *Handler {
	return &Handler{
		rectifyUC: rectifyUC,
	}
}

// ListDatasets handles GET /v1/datasets.
func (h *Handler) ListDatasets(c *gin.Context) {
	ids, err := h.rectifyUC.ListDatasets(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"datasets": ids,
	})
}

// GetGeometry handles GET /v1/datasets/:id/geometry.
func (h *Handler) GetGeometry(c *gin.Context) {
	var req usecase.GeometryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid query: %v", err)})
		return
	}

	response, err := h.rectifyUC.Geometry(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Rectify handles POST /v1/rectify.
func (h *Handler) Rectify(c *gin.Context) {
	var req usecase.RectifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	response, err := h.rectifyUC.Execute(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	if response.Empty {
		c.JSON(http.StatusOK, response)
		return
	}
	c.JSON(http.StatusCreated, response)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeError maps error kinds to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrShape):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupported):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrExists):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
