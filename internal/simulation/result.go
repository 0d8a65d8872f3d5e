package simulation

import (
	"github.com/efebarandurmaz/vendortwin/internal/compliance"
	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
)

// OperationalImpact is the blast radius of the outage.
type OperationalImpact struct {
	AffectedServices  []depgraph.AffectedService `json:"affected_services"`
	ServiceCount      int                        `json:"service_count"`
	TotalRPM          float64                    `json:"total_rpm"`
	CustomersAffected int64                      `json:"customers_affected"`
	BusinessProcesses []string                   `json:"business_processes"`
	ImpactScore       float64                    `json:"impact_score"`
}

// FinancialImpact is the cost of the outage.
type FinancialImpact struct {
	RevenueLoss          float64 `json:"revenue_loss"`
	RevenueLossFormatted string  `json:"revenue_loss_formatted"`
	FailedTransactions   int64   `json:"failed_transactions"`
	CustomerImpactCost   float64 `json:"customer_impact_cost"`
	TotalCost            float64 `json:"total_cost"`
	TotalCostFormatted   string  `json:"total_cost_formatted"`
	ImpactScore          float64 `json:"impact_score"`
}

// Result is the simulation output document.
type Result struct {
	SimulationID       string            `json:"simulation_id"`
	Vendor             string            `json:"vendor"`
	IdentityKey        string            `json:"identity_key"`
	DurationHours      float64           `json:"duration_hours"`
	Timestamp          string            `json:"timestamp"`
	OperationalImpact  OperationalImpact `json:"operational_impact"`
	FinancialImpact    FinancialImpact   `json:"financial_impact"`
	ComplianceImpact   compliance.Impact `json:"compliance_impact"`
	OverallImpactScore float64           `json:"overall_impact_score"`
	Recommendations    []string          `json:"recommendations"`
}

// BlastRadius returns the graph view of the operational impact, for export.
func (r *Result) BlastRadius() *depgraph.BlastRadius {
	return &depgraph.BlastRadius{
		Vendor:   r.Vendor,
		Key:      r.IdentityKey,
		Services: r.OperationalImpact.AffectedServices,
	}
}
