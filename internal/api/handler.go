package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-health-surveillance/internal/analytics"
	"github.com/mr1hm/go-health-surveillance/internal/broadcast"
	"github.com/mr1hm/go-health-surveillance/internal/ingestion"
	"github.com/mr1hm/go-health-surveillance/internal/metrics"
	"github.com/mr1hm/go-health-surveillance/internal/models"
	"github.com/mr1hm/go-health-surveillance/internal/repository"
	"github.com/mr1hm/go-health-surveillance/internal/syncer"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxSMSBatch      = 200
)

type Handler struct {
	records      repository.RecordRepository
	ingest       *ingestion.Manager
	syncer       *syncer.Syncer
	engine       *analytics.Engine
	connectivity *syncer.Connectivity
	broadcaster  *broadcast.Broadcaster
	metrics      *metrics.Collector
}

func NewHandler(records repository.RecordRepository, ingest *ingestion.Manager, s *syncer.Syncer, engine *analytics.Engine) *Handler {
	return &Handler{
		records: records,
		ingest:  ingest,
		syncer:  s,
		engine:  engine,
	}
}

func (h *Handler) WithConnectivity(c *syncer.Connectivity) *Handler {
	h.connectivity = c
	return h
}

func (h *Handler) WithBroadcaster(b *broadcast.Broadcaster) *Handler {
	h.broadcaster = b
	return h
}

func (h *Handler) WithMetrics(c *metrics.Collector) *Handler {
	h.metrics = c
	return h
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	api := r.Group("/api")
	api.POST("/reports/health", h.submitHealth)
	api.POST("/reports/water", h.submitWater)
	api.POST("/reports/environmental", h.submitEnvironmental)
	api.GET("/reports", h.listReports)
	api.GET("/reports/geojson", h.reportsGeoJSON)
	api.POST("/sms", h.submitSMS)

	api.GET("/sync/pending", h.pendingSync)
	api.POST("/sync/run", h.runSync)
	api.POST("/sync/connectivity", h.setConnectivity)

	api.GET("/analytics/risk", h.riskAssessment)
	api.GET("/analytics/clusters", h.clusters)
	api.GET("/analytics/forecast", h.forecast)
	api.GET("/analytics/diseases", h.diseases)

	api.GET("/stream", h.stream)
}

func (h *Handler) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.broadcaster != nil {
		resp["streamSubscribers"] = h.broadcaster.SubscriberCount()
		resp["streamDropped"] = h.broadcaster.Dropped()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) submitHealth(c *gin.Context) {
	var in models.HealthInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	respondSubmit(c, h.ingest.SubmitHealthReport(c.Request.Context(), in))
}

func (h *Handler) submitWater(c *gin.Context) {
	var in models.WaterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	respondSubmit(c, h.ingest.SubmitWaterReport(c.Request.Context(), in))
}

func (h *Handler) submitEnvironmental(c *gin.Context) {
	var in models.EnvironmentalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	respondSubmit(c, h.ingest.SubmitEnvironmentalReport(c.Request.Context(), in))
}

func respondSubmit(c *gin.Context, res models.SubmitResult) {
	switch {
	case res.Accepted:
		c.JSON(http.StatusCreated, res)
	case res.DuplicateOf != "":
		c.JSON(http.StatusConflict, res)
	case len(res.Errors) > 0:
		c.JSON(http.StatusUnprocessableEntity, res)
	default:
		c.JSON(http.StatusInternalServerError, res)
	}
}

type smsRequest struct {
	From     string                 `json:"from"`
	Text     string                 `json:"text"`
	Messages []ingestion.SMSMessage `json:"messages"`
}

// submitSMS takes one message or a batch and hands them to the intake
// workers. Malformed lines are reported per message.
func (h *Handler) submitSMS(c *gin.Context) {
	var req smsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msgs := req.Messages
	if req.Text != "" {
		msgs = append(msgs, ingestion.SMSMessage{From: req.From, Text: req.Text})
	}
	if len(msgs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no messages"})
		return
	}
	if len(msgs) > maxSMSBatch {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too many messages in one batch"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"results": h.ingest.QueueSMS(c.Request.Context(), msgs)})
}

func (h *Handler) listReports(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	reports, err := h.records.ListRecords(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch reports"})
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (h *Handler) reportsGeoJSON(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	filter.GeotaggedOnly = true

	reports, err := h.records.ListRecords(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch reports"})
		return
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(reports))
}

// parseFilter reads list query parameters. Unknown kinds and bad dates are
// rejected rather than ignored.
func parseFilter(c *gin.Context) (repository.Filter, bool) {
	filter := repository.Filter{
		Limit:    defaultListLimit,
		District: c.Query("district"),
	}

	if k := c.Query("kind"); k != "" {
		kind := models.ReportKind(strings.ToLower(k))
		if !kind.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown report kind"})
			return filter, false
		}
		filter.Kind = &kind
	}
	if v, ok := c.GetQuery("village"); ok {
		filter.Village = &v
	}
	if s := c.Query("since"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be YYYY-MM-DD"})
			return filter, false
		}
		filter.Since = &t
	}
	if s := c.Query("sync_status"); s != "" {
		status := models.SyncStatus(strings.ToLower(s))
		filter.SyncStatus = &status
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxListLimit {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off >= 0 {
			filter.Offset = off
		}
	}
	return filter, true
}
