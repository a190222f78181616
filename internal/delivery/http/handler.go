package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/chococrunch/pipeline/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	defaultProductLimit = 100
	maxProductLimit     = 1000
)

// PipelineRunner triggers pipeline runs
type PipelineRunner interface {
	// Start reserves the runner and runs in the background, or returns
	// domain.ErrRunInProgress when a run is already active
	Start(ctx context.Context, done func(domain.RunReport, error)) error
	Running() bool
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	snapshots domain.SnapshotStore
	runner    PipelineRunner
	cache     domain.CacheRepository
	cacheTTL  time.Duration
	log       *logger.Logger
}

// NewHandler creates a new HTTP handler. runner and cache may be nil.
func NewHandler(snapshots domain.SnapshotStore, runner PipelineRunner, cache domain.CacheRepository, cacheTTL time.Duration, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		snapshots: snapshots,
		runner:    runner,
		cache:     cache,
		cacheTTL:  cacheTTL,
		log:       log,
	}
}

// ProductsResponse is the body of the product listing
type ProductsResponse struct {
	Total    int                       `json:"total"`
	Count    int                       `json:"count"`
	Products []domain.EngineeredRecord `json:"products"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	running := false
	if h.runner != nil {
		running = h.runner.Running()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "chococrunch",
		"version":        "1.0.0",
		"pipelineActive": running,
	})
}

// ListProducts returns engineered products, optionally filtered by brand size and health risk
func (h *Handler) ListProducts(c *gin.Context) {
	var (
		brandSize domain.BrandSize
		risk      domain.RiskLevel
		ok        bool
	)

	if v := c.Query("brand_size"); v != "" {
		if brandSize, ok = parseBrandSize(v); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid brand_size %q (Minor, Medium or Major)", v)})
			return
		}
	}
	if v := c.Query("health_risk"); v != "" {
		if risk, ok = parseRiskLevel(v); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid health_risk %q (Low, Moderate or High)", v)})
			return
		}
	}

	limit := defaultProductLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxProductLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxProductLimit)})
			return
		}
		limit = n
	}

	key := fmt.Sprintf("products:%s:%s:%d", brandSize, risk, limit)
	h.serveCached(c, key, func() (interface{}, error) {
		ds, err := h.snapshots.ReadEngineered()
		if err != nil {
			return nil, err
		}

		resp := ProductsResponse{Products: []domain.EngineeredRecord{}}
		for _, r := range ds.Records {
			if brandSize != "" && r.BrandSize != brandSize {
				continue
			}
			if risk != "" && r.HealthRiskScore != risk {
				continue
			}
			resp.Total++
			if len(resp.Products) < limit {
				resp.Products = append(resp.Products, r)
			}
		}
		resp.Count = len(resp.Products)
		return resp, nil
	})
}

// GetProduct returns one engineered product by code
func (h *Handler) GetProduct(c *gin.Context) {
	code := c.Param("code")
	h.serveCached(c, "product:"+code, func() (interface{}, error) {
		ds, err := h.snapshots.ReadEngineered()
		if err != nil {
			return nil, err
		}
		return ds.Find(code)
	})
}

// GetReport returns the last execution report
func (h *Handler) GetReport(c *gin.Context) {
	report, err := h.snapshots.ReadReport()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// TriggerRun starts a pipeline run in the background
func (h *Handler) TriggerRun(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "pipeline runs are not enabled on this server"})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	err := h.runner.Start(ctx, func(report domain.RunReport, err error) {
		if err != nil {
			h.log.WithError(err).WithField("run_id", report.RunID).Error("triggered pipeline run failed")
		}
	})
	if errors.Is(err, domain.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// serveCached answers from the cache or builds, caches and returns the response.
// Keys are scoped to the last run id so a new run never serves stale snapshots.
func (h *Handler) serveCached(c *gin.Context, key string, build func() (interface{}, error)) {
	ctx := c.Request.Context()
	key = h.runScope() + ":" + key

	if h.cache != nil {
		if body, err := h.cache.Get(ctx, key); err == nil {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		} else if !errors.Is(err, domain.ErrCacheMiss) {
			h.log.WithError(err).WithField("key", key).Warn("cache read failed")
		}
	}

	value, err := build()
	if err != nil {
		h.writeError(c, err)
		return
	}

	body, err := json.Marshal(value)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, body, h.cacheTTL); err != nil {
			h.log.WithError(err).WithField("key", key).Warn("cache write failed")
		}
	}

	c.Header("X-Cache", "MISS")
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *Handler) runScope() string {
	report, err := h.snapshots.ReadReport()
	if err != nil || report.RunID == "" {
		return "norun"
	}
	return report.RunID
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no data yet, run the pipeline first"})
	case errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseBrandSize accepts labels case-insensitively
func parseBrandSize(s string) (domain.BrandSize, bool) {
	for _, size := range []domain.BrandSize{domain.BrandMinor, domain.BrandMedium, domain.BrandMajor} {
		if strings.EqualFold(s, string(size)) {
			return size, true
		}
	}
	return "", false
}

// parseRiskLevel accepts "High Risk" as well as the short form "high"
func parseRiskLevel(s string) (domain.RiskLevel, bool) {
	s = strings.TrimSpace(s)
	for _, level := range []domain.RiskLevel{domain.RiskLow, domain.RiskModerate, domain.RiskHigh} {
		if strings.EqualFold(s, string(level)) || strings.EqualFold(s+" Risk", string(level)) {
			return level, true
		}
	}
	return "", false
}
