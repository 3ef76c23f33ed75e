package cost

import (
	"math"
	"testing"

	"github.com/zen-systems/tiergate/pkg/catalog"
)

func TestEstimate(t *testing.T) {
	backend := catalog.Backend{
		ID:            "paid",
		PricePer1KIn:  0.00015,
		PricePer1KOut: 0.0006,
	}

	got := Estimate(1000, 1000, backend)
	want := 0.00075
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("estimate mismatch: got %v want %v", got, want)
	}
}

func TestEstimateMissingPriceIsFree(t *testing.T) {
	tests := []struct {
		name    string
		backend catalog.Backend
	}{
		{"no prices", catalog.Backend{ID: "free"}},
		{"no input price", catalog.Backend{ID: "half", PricePer1KOut: 0.01}},
		{"no output price", catalog.Backend{ID: "half", PricePer1KIn: 0.01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Estimate(5000, 5000, tt.backend); got != 0 {
				t.Fatalf("expected free, got %v", got)
			}
		})
	}
}

func TestCheapest(t *testing.T) {
	backends := []catalog.Backend{
		{ID: "a", RelativeCost: 5},
		{ID: "b", RelativeCost: 1},
		{ID: "c", RelativeCost: 3},
	}

	best, ok := Cheapest(backends)
	if !ok {
		t.Fatalf("expected a backend")
	}
	if best.ID != "b" {
		t.Fatalf("expected b, got %s", best.ID)
	}
}

func TestCheapestTieKeepsCatalogOrder(t *testing.T) {
	backends := []catalog.Backend{
		{ID: "first", RelativeCost: 2},
		{ID: "second", RelativeCost: 2},
	}

	best, ok := Cheapest(backends)
	if !ok || best.ID != "first" {
		t.Fatalf("expected stable tie-break to first, got %+v ok=%v", best, ok)
	}
}

func TestCheapestEmpty(t *testing.T) {
	if _, ok := Cheapest(nil); ok {
		t.Fatalf("expected no backend for empty slice")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("empty text: got %d", got)
	}
	if got := EstimateTokens("hi"); got != 1 {
		t.Fatalf("short text rounds up to 1, got %d", got)
	}
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Fatalf("8 chars should be 2 tokens, got %d", got)
	}
}
