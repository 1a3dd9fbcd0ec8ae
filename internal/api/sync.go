package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-health-surveillance/internal/syncer"
)

func (h *Handler) pendingSync(c *gin.Context) {
	ctx := c.Request.Context()
	pending, err := h.syncer.GetPendingSyncCount(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count pending records"})
		return
	}
	failed, err := h.syncer.GetFailedSyncCount(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count failed records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending, "failed": failed})
}

func (h *Handler) runSync(c *gin.Context) {
	res, err := h.syncer.ProcessSyncQueue(c.Request.Context())
	if errors.Is(err, syncer.ErrOffline) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "device offline"})
		return
	}
	if err != nil {
		slog.Error("manual sync pass failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync pass failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

func (h *Handler) setConnectivity(c *gin.Context) {
	if h.connectivity == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "connectivity tracking disabled"})
		return
	}

	var req connectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Online == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"online\": true|false}"})
		return
	}

	restored := h.connectivity.Set(*req.Online)
	if restored {
		slog.Info("connectivity restored via api")
	}
	c.JSON(http.StatusOK, gin.H{"online": h.connectivity.Online(), "restored": restored})
}
