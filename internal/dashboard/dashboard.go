// Package dashboard keeps a live feed of simulation activity: recent
// results with aggregates, and a Server-Sent Events stream of every event
// the system publishes.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/efebarandurmaz/vendortwin/internal/events"
	"github.com/efebarandurmaz/vendortwin/internal/simulation"
)

// Config configures the feed.
type Config struct {
	// Capacity is the number of simulations retained (default 100).
	Capacity int
	// KeepAlive is the SSE ping interval (default 30s).
	KeepAlive time.Duration
	Logger    *slog.Logger
}

// Feed is an events.Publisher that records simulations and relays every
// event to stream subscribers.
type Feed struct {
	Store     *Store
	Hub       *Hub
	keepAlive time.Duration
	logger    *slog.Logger
}

// New creates a feed.
func New(cfg Config) *Feed {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Feed{
		Store:     NewStore(cfg.Capacity),
		Hub:       NewHub(),
		keepAlive: cfg.KeepAlive,
		logger:    cfg.Logger,
	}
}

func (f *Feed) Publish(_ context.Context, e events.Event) error {
	msg := Message{Type: string(e.Type), ID: e.ID, Timestamp: e.Timestamp, Data: e.Payload}
	if e.Type == events.TypeSimulationCompleted {
		if r, ok := e.Payload.(*simulation.Result); ok {
			msg.Data = f.Store.Record(r)
		}
	}
	f.Hub.Broadcast(msg)
	return nil
}

func (f *Feed) Close() error {
	f.Hub.Close()
	return nil
}

// Register mounts the feed routes on r.
func (f *Feed) Register(r gin.IRoutes) {
	r.GET("/dashboard/simulations", f.handleSimulations)
	r.GET("/dashboard/stats", f.handleStats)
	r.GET("/dashboard/events", f.handleEvents)
}

func (f *Feed) handleSimulations(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer", "kind": "invalid_input"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"simulations": f.Store.List(limit)})
}

func (f *Feed) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, f.Store.Stats())
}

func (f *Feed) handleEvents(c *gin.Context) {
	client := f.Hub.Subscribe()
	defer f.Hub.Unsubscribe(client)

	f.logger.Debug("feed subscriber connected", "remote", c.ClientIP())
	if data, err := json.Marshal(Message{Type: "connected", Timestamp: time.Now().UTC()}); err == nil {
		client.send <- data
	}
	if err := client.Serve(c.Writer, c.Request.Context().Done(), f.keepAlive); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": "internal"})
	}
}
