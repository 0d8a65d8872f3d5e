package simulation

import (
	"fmt"
	"strings"
)

// Recommend synthesizes remediation advice from a scored result. The order
// is fixed: operational, financial, then compliance with one line per
// affected framework in name order.
func Recommend(r *Result, t *Thresholds) []string {
	if t == nil {
		t = DefaultThresholds()
	}
	recs := []string{}

	if n := r.OperationalImpact.ServiceCount; n > 0 {
		recs = append(recs,
			fmt.Sprintf("Implement fallback mechanisms for %d services depending on %s", n, r.Vendor),
			"Consider vendor diversification for critical business processes",
		)
	}

	if total := r.FinancialImpact.TotalCost; total > t.FinancialCost {
		recs = append(recs, fmt.Sprintf(
			"High financial impact detected (%s). Implement circuit breakers and graceful degradation",
			FormatCurrency(total)))
	}

	c := r.ComplianceImpact
	if c.ImpactScore > t.ComplianceScore {
		recs = append(recs, "Compliance impact significant. Review compensating controls for affected frameworks")
		for _, fw := range c.Frameworks() {
			recs = append(recs, fmt.Sprintf("  - %s: Score drops to %s", strings.ToUpper(fw), c.Summary[fw].NewScore))
		}
	}
	return recs
}
