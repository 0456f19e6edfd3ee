// Package api exposes the insights queries over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/insights/internal/domain"
	"github.com/jonesrussell/north-cloud/insights/internal/drilldown"
	"github.com/jonesrussell/north-cloud/insights/internal/period"
	"github.com/jonesrussell/north-cloud/insights/internal/resilience"
	"github.com/jonesrussell/north-cloud/insights/internal/taxonomy"
)

// DrilldownService answers chart and KPI queries.
type DrilldownService interface {
	Drilldown(ctx context.Context, dim taxonomy.Dimension, req drilldown.Request) (*domain.Drilldown, error)
	Totals(ctx context.Context, dim taxonomy.Dimension, req drilldown.Request) (*domain.Totals, error)
}

// UpstreamMonitor exposes the resilient client's state.
type UpstreamMonitor interface {
	Status() resilience.Status
	Degraded() bool
	Resource() string
	ResetBreaker(resource string)
}

// Handler holds HTTP request handlers.
type Handler struct {
	service  DrilldownService
	resolver *period.Resolver
	upstream UpstreamMonitor
	logger   logger.Logger
}

// NewHandler creates a new handler instance.
func NewHandler(service DrilldownService, resolver *period.Resolver, upstream UpstreamMonitor, log logger.Logger) *Handler {
	return &Handler{
		service:  service,
		resolver: resolver,
		upstream: upstream,
		logger:   log,
	}
}

// Ranges resolves the current and previous windows without calling upstream.
func (h *Handler) Ranges(c *gin.Context) {
	g, ranges, err := h.resolver.ResolveStrings(
		c.Query("granularity"), c.Query("mode"), c.Query("start"), c.Query("end"))
	if err != nil {
		badRequest(c, err)
		return
	}
	if ranges.Current.End.After(h.resolver.Yesterday()) {
		badRequest(c, &period.InputError{Field: "end", Message: "must not be later than yesterday (UTC)"})
		return
	}

	mode, _ := period.ParseMode(c.Query("mode"))
	current, _ := period.AxesFor(g, ranges)

	c.JSON(http.StatusOK, domain.RangesResponse{
		Granularity: g,
		Mode:        mode,
		Range:       ranges,
		XLabels:     current.Labels,
	})
}

// Classify maps one URL path onto a taxonomy entity. A miss is not an error.
func (h *Handler) Classify(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		badRequest(c, &period.InputError{Field: "path", Message: "is required"})
		return
	}
	dim, err := taxonomy.ParseDimension(c.Query("dimension"))
	if err != nil {
		badRequest(c, err)
		return
	}
	catalog, err := taxonomy.ForDimension(dim)
	if err != nil {
		badRequest(c, err)
		return
	}

	resp := domain.Classification{Path: path, Dimension: dim}
	if id, ok := catalog.Classify(path); ok {
		resp.ID = &id
		resp.Label = catalog.Label(id)
	}
	c.JSON(http.StatusOK, resp)
}

// TownDrilldown serves GET /towns/:id/drilldown?category=.
func (h *Handler) TownDrilldown(c *gin.Context) {
	h.drilldown(c, taxonomy.DimensionTown)
}

// CategoryDrilldown serves GET /categories/:id/drilldown?town=.
func (h *Handler) CategoryDrilldown(c *gin.Context) {
	h.drilldown(c, taxonomy.DimensionCategory)
}

func (h *Handler) drilldown(c *gin.Context, dim taxonomy.Dimension) {
	result, err := h.service.Drilldown(c.Request.Context(), dim, requestFor(c, dim))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// TownTotals serves GET /towns/:id/totals?category=.
func (h *Handler) TownTotals(c *gin.Context) {
	h.totals(c, taxonomy.DimensionTown)
}

// CategoryTotals serves GET /categories/:id/totals?town=.
func (h *Handler) CategoryTotals(c *gin.Context) {
	h.totals(c, taxonomy.DimensionCategory)
}

func (h *Handler) totals(c *gin.Context, dim taxonomy.Dimension) {
	result, err := h.service.Totals(c.Request.Context(), dim, requestFor(c, dim))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// requestFor reads the shared query parameters. The secondary id is named
// after the other dimension.
func requestFor(c *gin.Context, primary taxonomy.Dimension) drilldown.Request {
	return drilldown.Request{
		Granularity: c.Query("granularity"),
		Start:       c.Query("start"),
		End:         c.Query("end"),
		PrimaryID:   c.Param("id"),
		SecondaryID: c.Query(string(primary.Other())),
	}
}

// Taxonomy lists the entities of one dimension.
func (h *Handler) Taxonomy(c *gin.Context) {
	dim, err := taxonomy.ParseDimension(c.Param("dimension"))
	if err != nil {
		respondError(c, http.StatusNotFound, CodeUnknownEntity, err.Error())
		return
	}
	catalog, err := taxonomy.ForDimension(dim)
	if err != nil {
		respondError(c, http.StatusNotFound, CodeUnknownEntity, err.Error())
		return
	}
	c.JSON(http.StatusOK, domain.Catalog{Dimension: dim, Entities: catalog.Entities()})
}

// UpstreamStatusResponse is the body of GET /upstream/status.
type UpstreamStatusResponse struct {
	Resource string `json:"resource"`
	Degraded bool   `json:"degraded"`
	resilience.Status
}

// UpstreamStatus reports breaker and concurrency state.
func (h *Handler) UpstreamStatus(c *gin.Context) {
	c.JSON(http.StatusOK, UpstreamStatusResponse{
		Resource: h.upstream.Resource(),
		Degraded: h.upstream.Degraded(),
		Status:   h.upstream.Status(),
	})
}

// ResetUpstream closes a circuit by hand. resource defaults to the transport's.
func (h *Handler) ResetUpstream(c *gin.Context) {
	resource := c.DefaultQuery("resource", h.upstream.Resource())
	h.upstream.ResetBreaker(resource)

	logger.FromContext(c.Request.Context()).Warn("Circuit reset by operator",
		logger.String("resource", resource),
	)
	c.JSON(http.StatusOK, gin.H{"resource": resource, "state": "closed"})
}

// NotFound answers unknown routes with the error envelope.
func (h *Handler) NotFound(c *gin.Context) {
	respondError(c, http.StatusNotFound, CodeNotFound, "route not found")
}
