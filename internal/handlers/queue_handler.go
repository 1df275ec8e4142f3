package handlers

import (
	"context"
	"net/http"

	"github.com/estatehub/backend/internal/queue"
	"github.com/gin-gonic/gin"
)

// StatsSource reports queue depth
type StatsSource interface {
	Stats(ctx context.Context, queueName string) (*queue.QueueStats, error)
}

// QueueHandler exposes background queue statistics to admins
type QueueHandler struct {
	source StatsSource
}

// NewQueueHandler creates a new queue handler. A nil source reports the
// queue as disabled.
func NewQueueHandler(source StatsSource) *QueueHandler {
	return &QueueHandler{source: source}
}

// GetStats returns the file cleanup queue statistics
func (h *QueueHandler) GetStats(c *gin.Context) {
	if h.source == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}

	stats, err := h.source.Stats(c.Request.Context(), queue.QueueFileCleanup)
	if err != nil {
		respondError(c, err, "Failed to fetch queue stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "stats": stats})
}
