package dashboard

import (
	"sort"
	"sync"
	"time"

	"github.com/efebarandurmaz/vendortwin/internal/simulation"
)

const defaultCapacity = 100

// Store keeps the most recent simulations in arrival order.
type Store struct {
	mu       sync.RWMutex
	capacity int
	entries  []SimulationEntry
	now      func() time.Time
}

// NewStore creates a store retaining at most capacity entries.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Store{capacity: capacity, now: time.Now}
}

// Record summarizes r and appends it, evicting the oldest entry when full.
func (s *Store) Record(r *simulation.Result) SimulationEntry {
	entry := SimulationEntry{
		SimulationID: r.SimulationID,
		Vendor:       r.Vendor,
		IdentityKey:  r.IdentityKey,
		Hours:        r.DurationHours,
		Services:     r.OperationalImpact.ServiceCount,
		TotalCost:    r.FinancialImpact.TotalCost,
		Overall:      r.OverallImpactScore,
		Timestamp:    r.Timestamp,
		ReceivedAt:   s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	if over := len(s.entries) - s.capacity; over > 0 {
		s.entries = append(s.entries[:0:0], s.entries[over:]...)
	}
	return entry
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns everything retained.
func (s *Store) List(limit int) []SimulationEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]SimulationEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// Stats aggregates the retained entries. Vendors are ordered by their
// worst overall score, highest first.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Simulations: len(s.entries), Vendors: []VendorStats{}}
	if len(s.entries) == 0 {
		return stats
	}

	byVendor := make(map[string]*VendorStats)
	var total float64
	for _, e := range s.entries {
		total += e.Overall
		v, ok := byVendor[e.IdentityKey]
		if !ok {
			v = &VendorStats{Vendor: e.Vendor}
			byVendor[e.IdentityKey] = v
		}
		v.Simulations++
		v.MaxOverall = max(v.MaxOverall, e.Overall)
		v.MaxCost = max(v.MaxCost, e.TotalCost)
	}
	stats.AvgOverall = total / float64(len(s.entries))

	for _, v := range byVendor {
		stats.Vendors = append(stats.Vendors, *v)
	}
	sort.Slice(stats.Vendors, func(i, j int) bool {
		if stats.Vendors[i].MaxOverall != stats.Vendors[j].MaxOverall {
			return stats.Vendors[i].MaxOverall > stats.Vendors[j].MaxOverall
		}
		return stats.Vendors[i].Vendor < stats.Vendors[j].Vendor
	})
	return stats
}
