package dashboard

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/vendortwin/internal/events"
	"github.com/efebarandurmaz/vendortwin/internal/simulation"
)

func result(id, vendor string, overall, cost float64) *simulation.Result {
	return &simulation.Result{
		SimulationID:       id,
		Vendor:             vendor,
		IdentityKey:        strings.ToLower(vendor),
		DurationHours:      4,
		OverallImpactScore: overall,
		FinancialImpact:    simulation.FinancialImpact{TotalCost: cost},
	}
}

func TestStore_EvictsOldest(t *testing.T) {
	s := NewStore(2)
	s.Record(result("a", "Stripe", 0.1, 10))
	s.Record(result("b", "Stripe", 0.2, 20))
	s.Record(result("c", "Auth0", 0.3, 30))

	list := s.List(0)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].SimulationID)
	assert.Equal(t, "b", list[1].SimulationID)

	assert.Len(t, s.List(1), 1)
	assert.Len(t, s.List(10), 2)
}

func TestStore_Stats(t *testing.T) {
	s := NewStore(10)
	assert.Equal(t, 0, s.Stats().Simulations)
	assert.Empty(t, s.Stats().Vendors)

	s.Record(result("a", "Stripe", 0.2, 100))
	s.Record(result("b", "Stripe", 0.6, 50))
	s.Record(result("c", "Auth0", 0.4, 10))

	stats := s.Stats()
	assert.Equal(t, 3, stats.Simulations)
	assert.InDelta(t, 0.4, stats.AvgOverall, 1e-9)
	require.Len(t, stats.Vendors, 2)
	assert.Equal(t, VendorStats{Vendor: "Stripe", Simulations: 2, MaxOverall: 0.6, MaxCost: 100}, stats.Vendors[0])
	assert.Equal(t, "Auth0", stats.Vendors[1].Vendor)
}

func TestFeed_RecordsOnlySimulations(t *testing.T) {
	f := New(Config{})
	ctx := context.Background()

	require.NoError(t, f.Publish(ctx, events.New(events.TypeSimulationCompleted, result("a", "Stripe", 0.5, 1))))
	require.NoError(t, f.Publish(ctx, events.New(events.TypeMaintenanceFinished, map[string]int{"merged": 1})))

	assert.Len(t, f.Store.List(0), 1)
	assert.NoError(t, f.Close())
}

func TestHub_DropsWhenClientIsFull(t *testing.T) {
	h := NewHub()
	c := h.Subscribe()
	for i := 0; i < clientBuffer+5; i++ {
		h.Broadcast(Message{Type: "x"})
	}
	assert.Len(t, c.send, clientBuffer)

	h.Unsubscribe(c)
	h.Unsubscribe(c)
	assert.Equal(t, 0, h.Clients())
}

func newRouter(f *Feed) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	f.Register(r)
	return r
}

func TestRoutes_SimulationsAndStats(t *testing.T) {
	f := New(Config{})
	f.Store.Record(result("a", "Stripe", 0.5, 1))
	r := newRouter(f)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/simulations?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Simulations []SimulationEntry `json:"simulations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Simulations, 1)
	assert.Equal(t, "stripe", body.Simulations[0].IdentityKey)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/simulations?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Simulations)
}

func TestRoutes_EventStream(t *testing.T) {
	f := New(Config{KeepAlive: time.Hour})
	srv := httptest.NewServer(newRouter(f))
	defer srv.Close()
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/dashboard/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return f.Hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, f.Publish(ctx, events.New(events.TypeSimulationCompleted, result("a", "Stripe", 0.5, 1))))

	var types []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && len(types) < 2 {
		line, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var msg Message
		require.NoError(t, json.Unmarshal([]byte(line), &msg))
		types = append(types, msg.Type)
	}
	assert.Equal(t, []string{"connected", string(events.TypeSimulationCompleted)}, types)
}
