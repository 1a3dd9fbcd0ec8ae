package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-health-surveillance/internal/analytics"
	"github.com/mr1hm/go-health-surveillance/internal/models"
)

const (
	analyticsLookback = 30 * 24 * time.Hour
	maxForecastDays   = 30
)

func (h *Handler) snapshot(c *gin.Context, district string) (analytics.Snapshot, bool) {
	since := h.engine.Now().Add(-analyticsLookback)
	snap, err := analytics.LoadSnapshot(c.Request.Context(), h.records, district, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reports"})
		return snap, false
	}
	return snap, true
}

func requireLocation(c *gin.Context) (models.Location, bool) {
	loc := models.Location{
		District: c.Query("district"),
		Village:  c.Query("village"),
		State:    c.Query("state"),
	}
	if loc.District == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "district is required"})
		return loc, false
	}
	return loc, true
}

func (h *Handler) riskAssessment(c *gin.Context) {
	loc, ok := requireLocation(c)
	if !ok {
		return
	}
	snap, ok := h.snapshot(c, loc.District)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.engine.GenerateRiskAssessment(loc, snap.Health, snap.Water, snap.Environmental))
}

func (h *Handler) clusters(c *gin.Context) {
	snap, ok := h.snapshot(c, c.Query("district"))
	if !ok {
		return
	}
	clusters := h.engine.GetActiveClusters(snap.Health)
	if clusters == nil {
		clusters = []models.SyndromicCluster{}
	}
	c.JSON(http.StatusOK, gin.H{"clusters": clusters})
}

func (h *Handler) forecast(c *gin.Context) {
	days := analytics.DefaultForecastDays
	if d := c.Query("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 || n > maxForecastDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 30"})
			return
		}
		days = n
	}

	district := c.Query("district")
	snap, ok := h.snapshot(c, district)
	if !ok {
		return
	}
	health := snap.Health
	if district != "" {
		health = snap.ForLocation(models.Location{District: district, Village: c.Query("village")}).Health
	}

	forecast := h.engine.GetForecast(health, days)
	if forecast == nil {
		forecast = []models.TimeSeriesForecast{}
	}
	c.JSON(http.StatusOK, gin.H{"forecast": forecast})
}

func (h *Handler) diseases(c *gin.Context) {
	loc, ok := requireLocation(c)
	if !ok {
		return
	}
	snap, ok := h.snapshot(c, loc.District)
	if !ok {
		return
	}
	local := snap.ForLocation(loc)

	predictions := h.engine.PredictDiseases(local.Health, local.Water, local.Environmental)
	if predictions == nil {
		predictions = []models.DiseasePrediction{}
	}
	c.JSON(http.StatusOK, gin.H{"predictions": predictions})
}
