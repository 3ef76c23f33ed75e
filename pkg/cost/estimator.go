// Package cost converts token counts and backend price rates into
// monetary estimates. Everything here is pure: the same inputs always
// produce the same estimate, so routing decisions stay auditable.
package cost

import "github.com/zen-systems/tiergate/pkg/catalog"

// Estimate returns the cost in USD of a call with the given token
// counts against a backend's per-1k prices. A backend with either
// price missing is treated as free, never as an error.
func Estimate(inputTokens, outputTokens int, backend catalog.Backend) float64 {
	if backend.PricePer1KIn == 0 || backend.PricePer1KOut == 0 {
		return 0
	}
	inCost := (float64(inputTokens) / 1000.0) * backend.PricePer1KIn
	outCost := (float64(outputTokens) / 1000.0) * backend.PricePer1KOut
	return inCost + outCost
}

// Cheapest returns the backend with the lowest relative cost. Ties keep
// catalog order. Returns false for an empty slice.
func Cheapest(backends []catalog.Backend) (catalog.Backend, bool) {
	if len(backends) == 0 {
		return catalog.Backend{}, false
	}
	best := backends[0]
	for _, b := range backends[1:] {
		if b.RelativeCost < best.RelativeCost {
			best = b
		}
	}
	return best, true
}

// EstimateTokens approximates the token count of a text. Four
// characters per token is the usual rule of thumb; good enough for
// pre-flight quota and cost checks.
func EstimateTokens(text string) int {
	tokens := len(text) / 4
	if tokens == 0 && len(text) > 0 {
		tokens = 1
	}
	return tokens
}
