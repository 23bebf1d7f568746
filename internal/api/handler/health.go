package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Warmer loads the artifacts a request needs.
type Warmer interface {
	Warmup(ctx context.Context) error
	// ArtifactsLoadedAt reports when each cached artifact was loaded.
	ArtifactsLoadedAt() map[string]time.Time
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	warmer Warmer
}

// NewHealthHandler creates a new health handler. A nil warmer makes the
// service always ready.
func NewHealthHandler(warmer Warmer) *HealthHandler {
	return &HealthHandler{warmer: warmer}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready reports whether the model and the catalog can be served, loading
// them if they are not cached yet.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.warmer != nil {
		if err := h.warmer.Warmup(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	resp := gin.H{"status": "ready"}
	if h.warmer != nil {
		resp["artifacts"] = h.warmer.ArtifactsLoadedAt()
	}
	c.JSON(http.StatusOK, resp)
}
