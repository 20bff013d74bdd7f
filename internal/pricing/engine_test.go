package pricing

import "testing"

func TestComputeTotals(t *testing.T) {
	items := []Item{
		{Qty: 2, UnitPrice: 120000},
		{Qty: 1, UnitPrice: 45000},
	}
	summary := Compute(items, 30000, 900, 25000)
	if summary.Subtotal != 285000 {
		t.Fatalf("subtotal = %d", summary.Subtotal)
	}
	if summary.Discount != 30000 {
		t.Fatalf("discount = %d", summary.Discount)
	}
	if summary.Tax != 22950 {
		t.Fatalf("tax = %d", summary.Tax)
	}
	if summary.Total != 302950 {
		t.Fatalf("total = %d", summary.Total)
	}
}

func TestComputeClampsDiscount(t *testing.T) {
	items := []Item{{Qty: 1, UnitPrice: 50000}}
	summary := Compute(items, 80000, 0, 0)
	if summary.Discount != 50000 {
		t.Fatalf("discount = %d", summary.Discount)
	}
	if summary.Total != 0 {
		t.Fatalf("total = %d", summary.Total)
	}
}

func TestComputeSkipsNonPositiveQty(t *testing.T) {
	items := []Item{
		{Qty: 0, UnitPrice: 99999},
		{Qty: -2, UnitPrice: 99999},
		{Qty: 3, UnitPrice: 10000},
	}
	summary := Compute(items, 0, 0, 0)
	if summary.Subtotal != 30000 {
		t.Fatalf("subtotal = %d", summary.Subtotal)
	}
}
