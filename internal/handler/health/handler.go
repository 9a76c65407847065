package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Analyzer reports whether ECG analysis can run.
type Analyzer interface {
	Available() bool
}

type Config struct {
	Environment string
	WordLimit   int
}

type Handler struct {
	store    Pinger
	analyzer Analyzer
	cfg      Config
	now      func() time.Time
}

func NewHandler(store Pinger, analyzer Analyzer, cfg Config) *Handler {
	return &Handler{
		store:    store,
		analyzer: analyzer,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("", h.Status)
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

type statusResponse struct {
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
	WordLimit   int       `json:"wordLimit"`
	ECGAnalysis string    `json:"ecgAnalysis"`
}

func (h *Handler) Status(c *gin.Context) {
	ecg := "unavailable"
	if h.analyzer != nil && h.analyzer.Available() {
		ecg = "available"
	}
	c.JSON(http.StatusOK, statusResponse{
		Status:      "OK",
		Message:     "MEDBOT AI server is running",
		Timestamp:   h.now().UTC(),
		Environment: h.cfg.Environment,
		WordLimit:   h.cfg.WordLimit,
		ECGAnalysis: ecg,
	})
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "DOWN",
				"reason": "Record store unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
