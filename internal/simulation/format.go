package simulation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatCurrency renders an amount as "$1,234.56".
func FormatCurrency(amount float64) string {
	// Printers are not shared; each call gets its own.
	p := message.NewPrinter(language.English)
	return p.Sprintf("$%.2f", amount)
}

// FormatSummary renders a result for a terminal.
func FormatSummary(r *Result) string {
	p := message.NewPrinter(language.English)
	upper := cases.Upper(language.English)
	rule := strings.Repeat("=", 60)

	var b strings.Builder
	b.WriteString(rule + "\n")
	p.Fprintf(&b, "VENDOR FAILURE SIMULATION: %s (%g hours)\n", r.Vendor, r.DurationHours)
	b.WriteString(rule + "\n\n")

	op := r.OperationalImpact
	b.WriteString("OPERATIONAL IMPACT\n")
	p.Fprintf(&b, "  Services Affected:   %d\n", op.ServiceCount)
	p.Fprintf(&b, "  Customers Affected:  %d\n", op.CustomersAffected)
	p.Fprintf(&b, "  Business Processes:  %d\n\n", len(op.BusinessProcesses))

	fin := r.FinancialImpact
	b.WriteString("FINANCIAL IMPACT\n")
	p.Fprintf(&b, "  Total Cost:          %s\n", fin.TotalCostFormatted)
	p.Fprintf(&b, "  Revenue Loss:        %s\n", fin.RevenueLossFormatted)
	p.Fprintf(&b, "  Failed Transactions: %d\n\n", fin.FailedTransactions)

	b.WriteString("COMPLIANCE IMPACT\n")
	for _, name := range r.ComplianceImpact.Frameworks() {
		s := r.ComplianceImpact.Summary[name]
		p.Fprintf(&b, "  %s: %s -> %s\n", upper.String(name), s.Change, s.NewScore)
	}
	b.WriteString("\n")

	p.Fprintf(&b, "OVERALL IMPACT SCORE: %.2f/1.0\n\n", r.OverallImpactScore)

	b.WriteString("RECOMMENDATIONS\n")
	for i, rec := range r.Recommendations {
		p.Fprintf(&b, "  %d. %s\n", i+1, rec)
	}
	b.WriteString(rule + "\n")
	return b.String()
}
