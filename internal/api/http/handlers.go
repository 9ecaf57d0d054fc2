package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlie-sans/netprop/internal/document"
	"github.com/charlie-sans/netprop/internal/infrastructure/logging"
	"github.com/charlie-sans/netprop/internal/infrastructure/monitoring"
	"github.com/charlie-sans/netprop/internal/render"
)

// HeaderRenderID carries the render ID on document responses.
const HeaderRenderID = "X-Render-ID"

// Renderer renders one document by name.
type Renderer interface {
	Render(ctx context.Context, name string) *render.Result
}

// Stats reports optional component state for the health endpoint.
type Stats interface {
	Count() int
}

// Handlers contains all HTTP handlers
type Handlers struct {
	renderer    Renderer
	defaultName string
	logger      *logging.Logger

	metrics *monitoring.Metrics
	peers   Stats
	cache   interface{ Cached() int }
}

// NewHandlers creates a new handler set
func NewHandlers(renderer Renderer, defaultName string, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		renderer:    renderer,
		defaultName: defaultName,
		logger:      logger.Named("http"),
	}
}

// WithMetrics adds render totals to the health report.
func (h *Handlers) WithMetrics(m *monitoring.Metrics) *Handlers {
	h.metrics = m
	return h
}

// WithPeers adds the broadcast peer count to the health report.
func (h *Handlers) WithPeers(s Stats) *Handlers {
	h.peers = s
	return h
}

// WithCache adds the document cache size to the health report.
func (h *Handlers) WithCache(c interface{ Cached() int }) *Handlers {
	h.cache = c
	return h
}

// Page renders the document addressed by the request path.
func (h *Handlers) Page(c *gin.Context) {
	path := c.Request.URL.Path

	if c.Request.Method != http.MethodGet {
		h.logger.Debug("Method not allowed", zap.String("method", c.Request.Method), zap.String("path", path))
		h.abort(c, render.StatusMethodNotAllowed)
		return
	}

	name, err := document.ResolveName(path, h.defaultName)
	if err != nil {
		h.logger.Debug("Unresolvable document path", zap.String("path", path), zap.Error(err))
		h.abort(c, render.StatusNotFound)
		return
	}

	h.logger.Debug("Document request",
		zap.String("method", c.Request.Method),
		zap.String("path", path),
		logging.Document(name),
	)

	res := h.renderer.Render(c.Request.Context(), name)
	c.Header(HeaderRenderID, res.RenderID.String())

	if !res.OK() {
		h.abort(c, res.Status)
		return
	}

	c.Data(http.StatusOK, res.ContentType, []byte(res.Body))
}

// Health reports service status.
func (h *Handlers) Health(c *gin.Context) {
	report := gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		report["uptime_seconds"] = int64(h.metrics.Uptime().Seconds())
		report["renders"] = gin.H{
			"total":          snap.TotalRenders,
			"failed":         snap.FailedRenders,
			"block_failures": snap.BlockFailures,
		}
	}
	if h.peers != nil {
		report["broadcast_peers"] = h.peers.Count()
	}
	if h.cache != nil {
		report["cached_documents"] = h.cache.Cached()
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handlers) abort(c *gin.Context, status render.Status) {
	c.AbortWithStatus(status.HTTPStatus())
}
