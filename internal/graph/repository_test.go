package graph

import "testing"

func TestFillProps(t *testing.T) {
	canonical := map[string]any{"name": "stripe", "category": "", "criticality": "high"}
	dup1 := map[string]any{"category": "payments", "criticality": "low", "vendor_id": nil}
	dup2 := map[string]any{"category": "billing", "vendor_id": "vendor_stripe"}

	fill := FillProps(canonical, dup1, dup2)

	if fill["category"] != "payments" {
		t.Errorf("expected first duplicate to win, got %v", fill["category"])
	}
	if _, ok := fill["criticality"]; ok {
		t.Error("expected populated canonical property to be kept")
	}
	if fill["vendor_id"] != "vendor_stripe" {
		t.Errorf("expected nil to be skipped, got %v", fill["vendor_id"])
	}
	if len(fill) != 2 {
		t.Errorf("expected 2 filled properties, got %v", fill)
	}
}
