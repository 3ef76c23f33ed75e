package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/zen-systems/tiergate/pkg/adapter"
	"github.com/zen-systems/tiergate/pkg/catalog"
	"github.com/zen-systems/tiergate/pkg/cost"
)

// Complexity buckets a request by how much model capability it needs.
type Complexity int

const (
	ComplexityLow Complexity = iota
	ComplexityMedium
	ComplexityHigh
)

var complexityNames = [...]string{"low", "medium", "high"}

func (c Complexity) String() string {
	if c >= 0 && int(c) < len(complexityNames) {
		return complexityNames[c]
	}
	return "unknown"
}

// ComplexityClassifier buckets a request's text.
type ComplexityClassifier interface {
	Classify(ctx context.Context, text string) Complexity
}

// Classifier classifies complexity with one constrained, low-token call
// to the cheapest general backend in the lowest free tier. Any call
// failure or unexpected output falls through to the deterministic
// heuristic, so classification itself never fails a route.
type Classifier struct {
	catalog *catalog.Catalog
	invoker adapter.Invoker
}

// NewClassifier creates a classifier backed by the given catalog
// snapshot and invoker.
func NewClassifier(cat *catalog.Catalog, invoker adapter.Invoker) *Classifier {
	return &Classifier{catalog: cat, invoker: invoker}
}

// Classify determines the complexity bucket for a text.
func (c *Classifier) Classify(ctx context.Context, text string) Complexity {
	backend, ok := c.classifierBackend()
	if !ok {
		return HeuristicComplexity(text)
	}

	resp, err := c.invoker.Invoke(ctx, backend, buildClassifierPrompt(text))
	if err != nil || resp == nil {
		return HeuristicComplexity(text)
	}

	switch strings.ToLower(strings.TrimSpace(resp.Content)) {
	case "low":
		return ComplexityLow
	case "medium":
		return ComplexityMedium
	case "high":
		return ComplexityHigh
	}
	return HeuristicComplexity(text)
}

func (c *Classifier) classifierBackend() (catalog.Backend, bool) {
	tier, ok := c.catalog.LowestFreeTier()
	if !ok {
		return catalog.Backend{}, false
	}
	backends := c.catalog.BackendsForTier(tier)
	var capable []catalog.Backend
	for _, b := range backends {
		if b.Capabilities.Has(catalog.CapGeneral) {
			capable = append(capable, b)
		}
	}
	if len(capable) == 0 {
		capable = backends
	}
	return cost.Cheapest(capable)
}

func buildClassifierPrompt(text string) string {
	return fmt.Sprintf("Classify the complexity of the following request. "+
		"Answer with exactly one word: low, medium, or high. No other output.\n\n%s", text)
}

var codeMarkers = []string{"function", "class", "import"}

var complexityKeywords = []string{
	"explain", "analyze", "implement", "architecture",
	"refactor", "optimize", "debug", "algorithm", "design",
}

// HeuristicComplexity is the deterministic fallback classifier. It is
// side-effect-free so it can be tested without a live backend.
func HeuristicComplexity(text string) Complexity {
	lower := strings.ToLower(text)
	words := len(strings.Fields(text))

	hasCode := strings.Contains(text, "```")
	if !hasCode {
		for _, marker := range codeMarkers {
			if containsToken(lower, marker) {
				hasCode = true
				break
			}
		}
	}

	hasKeyword := false
	for _, kw := range complexityKeywords {
		if containsToken(lower, kw) {
			hasKeyword = true
			break
		}
	}

	if hasCode || hasKeyword || words > 50 {
		return ComplexityHigh
	}
	if words <= 5 {
		return ComplexityLow
	}
	return ComplexityMedium
}

// containsToken checks if the text contains the token as a whole word.
func containsToken(text, token string) bool {
	idx := strings.Index(text, token)
	if idx == -1 {
		return false
	}

	if idx > 0 && isWordChar(text[idx-1]) {
		return false
	}

	endIdx := idx + len(token)
	if endIdx < len(text) && isWordChar(text[endIdx]) {
		return false
	}

	return true
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
