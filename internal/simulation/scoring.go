package simulation

import "math"

// Weights are the dimension weights of the overall score. Summing to 1 is
// the caller's responsibility.
type Weights struct {
	Operational float64 `json:"operational" mapstructure:"operational"`
	Financial   float64 `json:"financial" mapstructure:"financial"`
	Compliance  float64 `json:"compliance" mapstructure:"compliance"`
}

// DefaultWeights returns the default dimension weights.
func DefaultWeights() *Weights {
	return &Weights{
		Operational: 0.40,
		Financial:   0.35,
		Compliance:  0.25,
	}
}

// Params are the business metrics and model constants of the impact model.
type Params struct {
	// RevenuePerHour is the revenue at risk per outage hour.
	RevenuePerHour float64 `json:"revenue_per_hour" mapstructure:"revenue_per_hour"`
	// TransactionsPerHour is the transaction volume per outage hour.
	TransactionsPerHour float64 `json:"transactions_per_hour" mapstructure:"transactions_per_hour"`
	// RevenueSharePerService is the revenue fraction each affected service
	// carries (default: 0.25).
	RevenueSharePerService float64 `json:"revenue_share_per_service" mapstructure:"revenue_share_per_service"`
	// CostPerCustomer is the cost of one affected customer (default: 5).
	CostPerCustomer float64 `json:"cost_per_customer" mapstructure:"cost_per_customer"`
	// ServiceScale is the service inventory size the operational score
	// saturates at (default: 10).
	ServiceScale float64 `json:"service_scale" mapstructure:"service_scale"`
	// FinancialScale is the total cost the financial score saturates at
	// (default: 1,000,000).
	FinancialScale float64 `json:"financial_scale" mapstructure:"financial_scale"`
}

// DefaultParams returns the default impact model parameters.
func DefaultParams() *Params {
	return &Params{
		RevenuePerHour:         10000,
		TransactionsPerHour:    1000,
		RevenueSharePerService: 0.25,
		CostPerCustomer:        5,
		ServiceScale:           10,
		FinancialScale:         1_000_000,
	}
}

// Thresholds gate the conditional recommendations.
type Thresholds struct {
	// FinancialCost is the total cost above which a financial-risk
	// recommendation is emitted (default: 100,000).
	FinancialCost float64 `json:"financial_cost" mapstructure:"financial_cost"`
	// ComplianceScore is the compliance score above which a compliance
	// review is recommended (default: 0.10).
	ComplianceScore float64 `json:"compliance_score" mapstructure:"compliance_score"`
}

// DefaultThresholds returns the default recommendation thresholds.
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		FinancialCost:   100000,
		ComplianceScore: 0.10,
	}
}

// CalculateImpactScore combines the three dimension scores into one value
// in [0, 1]. A nil weights uses DefaultWeights.
func CalculateImpactScore(operational, financial, compliance float64, weights *Weights) float64 {
	if weights == nil {
		weights = DefaultWeights()
	}
	score := operational*weights.Operational +
		financial*weights.Financial +
		compliance*weights.Compliance
	return clamp(score)
}

// saturate maps an unbounded quantity onto [0, 1] against scale.
func saturate(raw, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	return clamp(raw / scale)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(v, 1))
}
