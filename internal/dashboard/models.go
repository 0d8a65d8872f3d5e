package dashboard

import "time"

// SimulationEntry is the feed's summary of one completed simulation.
type SimulationEntry struct {
	SimulationID string    `json:"simulation_id"`
	Vendor       string    `json:"vendor"`
	IdentityKey  string    `json:"identity_key"`
	Hours        float64   `json:"duration_hours"`
	Services     int       `json:"service_count"`
	TotalCost    float64   `json:"total_cost"`
	Overall      float64   `json:"overall_impact_score"`
	Timestamp    string    `json:"timestamp"`
	ReceivedAt   time.Time `json:"received_at"`
}

// VendorStats aggregates the simulations of one vendor.
type VendorStats struct {
	Vendor      string  `json:"vendor"`
	Simulations int     `json:"simulations"`
	MaxOverall  float64 `json:"max_overall_impact_score"`
	MaxCost     float64 `json:"max_total_cost"`
}

// Stats holds aggregates over the retained simulations.
type Stats struct {
	Simulations int           `json:"simulations"`
	AvgOverall  float64       `json:"avg_overall_impact_score"`
	Vendors     []VendorStats `json:"vendors"`
}

// Message is one frame sent to feed subscribers.
type Message struct {
	Type      string    `json:"type"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}
