package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/graph"
	"github.com/efebarandurmaz/vendortwin/internal/observability"
	"github.com/efebarandurmaz/vendortwin/internal/results"
	"github.com/efebarandurmaz/vendortwin/internal/simulation"
)

// Simulator runs one failure simulation.
type Simulator interface {
	Simulate(ctx context.Context, vendor string, hours float64) (*simulation.Result, error)
}

// SimulateRequest is the POST /simulate body. Duration defaults to the
// configured value when omitted.
type SimulateRequest struct {
	Vendor   string   `json:"vendor" binding:"required"`
	Duration *float64 `json:"duration"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// VendorsResponse is the GET /vendors body.
type VendorsResponse struct {
	Vendors []depgraph.Vendor `json:"vendors"`
	Count   int               `json:"count"`
}

// APIOptions wires the API's collaborators. Results may be nil, which
// disables GET /simulate/:id.
type APIOptions struct {
	Simulator       Simulator
	Reader          graph.Reader
	Results         results.Store
	Health          *HealthServer
	Metrics         *observability.Metrics
	Logger          *slog.Logger
	DefaultDuration float64
	Version         string
	// Mounts are extra route groups registered after the core API.
	Mounts []Mount
}

// Mount registers additional routes.
type Mount interface {
	Register(r gin.IRoutes)
}

// API holds the HTTP handlers.
type API struct {
	opts APIOptions
}

// NewAPI creates the handlers.
func NewAPI(opts APIOptions) *API {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = 4
	}
	if opts.Health == nil {
		opts.Health = NewHealthServer(opts.Version)
	}
	return &API{opts: opts}
}

// Router builds the gin engine with every route mounted.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(a.opts.Logger))
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API on r.
//
//	POST /simulate       run a simulation
//	GET  /simulate/:id   fetch a cached result
//	GET  /vendors        list vendors in the graph
//	GET  /metrics        Prometheus scrape
//	GET  /               service info
//	GET  /health, /ready, /live
func (a *API) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", a.handleIndex)
	r.POST("/simulate", a.handleSimulate)
	r.GET("/simulate/:id", a.handleGetSimulation)
	r.GET("/vendors", a.handleVendors)
	if a.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(a.opts.Metrics.Handler()))
	}
	a.opts.Health.Register(r)
	for _, m := range a.opts.Mounts {
		m.Register(r)
	}
}

func (a *API) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "vendortwin",
		"version": a.opts.Version,
		"endpoints": []string{
			"POST /simulate",
			"GET /simulate/:id",
			"GET /vendors",
			"GET /health",
			"GET /metrics",
		},
	})
}

func (a *API) handleSimulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "invalid_input"})
		return
	}
	hours := a.opts.DefaultDuration
	if req.Duration != nil {
		hours = *req.Duration
	}

	result, err := a.opts.Simulator.Simulate(c.Request.Context(), req.Vendor, hours)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *API) handleGetSimulation(c *gin.Context) {
	if a.opts.Results == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{
			Error: "result cache is not configured",
			Kind:  "not_implemented",
		})
		return
	}
	id := c.Param("id")
	result, err := a.opts.Results.Get(c.Request.Context(), id)
	if errors.Is(err, results.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: "not_found"})
		return
	}
	if err != nil {
		a.opts.Logger.Error("fetch simulation result", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: "internal"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *API) handleVendors(c *gin.Context) {
	vendors, err := a.opts.Reader.ListVendors(c.Request.Context())
	if err != nil {
		writeError(c, depgraph.Unavailable("list vendors", err))
		return
	}
	if vendors == nil {
		vendors = []depgraph.Vendor{}
	}
	c.JSON(http.StatusOK, VendorsResponse{Vendors: vendors, Count: len(vendors)})
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, depgraph.ErrInvalidInput), errors.Is(err, depgraph.ErrMalformedDocument):
		return http.StatusBadRequest
	case errors.Is(err, depgraph.ErrGraphUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(StatusFor(err), ErrorResponse{Error: err.Error(), Kind: depgraph.KindOf(err)})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
