package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health and readiness requests.
type HealthHandler struct {
	version string
	db      func() error
}

// NewHealthHandler creates a HealthHandler that reports the given version
// and uses dbCheck for readiness probes.
func NewHealthHandler(version string, dbCheck func() error) *HealthHandler {
	return &HealthHandler{version: version, db: dbCheck}
}

// HealthCheck returns service health status.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadyCheck verifies the storage backend answers before reporting ready.
func (h *HealthHandler) ReadyCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
