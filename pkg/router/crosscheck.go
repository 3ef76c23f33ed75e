package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/zen-systems/tiergate/pkg/adapter"
	"github.com/zen-systems/tiergate/pkg/catalog"
)

// CrossCheckResult holds the outputs of a multi-backend validation run.
type CrossCheckResult struct {
	Primary    *adapter.Result
	Reviewer   *adapter.Result
	Arbitrator *adapter.Result
	Consensus  string
	Conflicts  []string
	Summary    string
	Tier       catalog.Tier
}

// Results returns the non-nil backend results in call order.
func (r *CrossCheckResult) Results() []*adapter.Result {
	var out []*adapter.Result
	for _, res := range []*adapter.Result{r.Primary, r.Reviewer, r.Arbitrator} {
		if res != nil {
			out = append(out, res)
		}
	}
	return out
}

// CrossCheckRunner runs a cross-check at a tier. The escalation
// controller re-runs through the same interface.
type CrossCheckRunner interface {
	Run(ctx context.Context, prompt, taskType string, tier catalog.Tier) (*CrossCheckResult, error)
}

// CrossChecker validates a result by running a primary backend, a
// reviewer, and — on disagreement — an arbitrator, all in the same
// tier. The stages are strictly sequential: each later prompt embeds
// the earlier output.
type CrossChecker struct {
	catalog  *catalog.Catalog
	invoker  adapter.Invoker
	picker   *BackendPicker
	detector ConflictDetector
}

// NewCrossChecker creates a cross-checker over a catalog snapshot.
func NewCrossChecker(cat *catalog.Catalog, invoker adapter.Invoker, detector ConflictDetector) *CrossChecker {
	if detector == nil {
		detector = KeywordDetector{}
	}
	return &CrossChecker{
		catalog:  cat,
		invoker:  invoker,
		picker:   NewBackendPicker(cat),
		detector: detector,
	}
}

// Run executes the cross-check. With fewer than two backends in the
// tier it degrades to a single call and reports no conflicts. Any
// backend failure is fatal for the route; no partial consensus is ever
// returned.
func (c *CrossChecker) Run(ctx context.Context, prompt, taskType string, tier catalog.Tier) (*CrossCheckResult, error) {
	backends := c.catalog.BackendsForTier(tier)
	if len(backends) < 2 {
		return c.runSingle(ctx, prompt, taskType, tier)
	}

	primaryBackend := backends[0]
	primary, err := c.invoker.Invoke(ctx, primaryBackend, prompt)
	if err != nil {
		return nil, invocationError(err, tier, primaryBackend.ID)
	}

	reviewerBackend := backends[1]
	reviewer, err := c.invoker.Invoke(ctx, reviewerBackend, buildReviewPrompt(prompt, primary.Content))
	if err != nil {
		return nil, invocationError(err, tier, reviewerBackend.ID)
	}

	result := &CrossCheckResult{
		Primary:   primary,
		Reviewer:  reviewer,
		Conflicts: c.detector.Detect(reviewer.Content),
		Consensus: primary.Content,
		Tier:      tier,
	}

	if len(result.Conflicts) > 0 && len(backends) >= 3 {
		arbitratorBackend := backends[2]
		arbitrator, err := c.invoker.Invoke(ctx, arbitratorBackend,
			buildArbitratorPrompt(prompt, primary.Content, reviewer.Content))
		if err != nil {
			return nil, invocationError(err, tier, arbitratorBackend.ID)
		}
		result.Arbitrator = arbitrator
		result.Consensus = arbitrator.Content
	}

	result.Summary = buildCrossCheckSummary(result)
	return result, nil
}

// runSingle degrades to one call through the picker when the tier
// cannot field a reviewer.
func (c *CrossChecker) runSingle(ctx context.Context, prompt, taskType string, tier catalog.Tier) (*CrossCheckResult, error) {
	backend, err := c.picker.Pick(tier, taskType)
	if err != nil {
		return nil, err
	}
	primary, err := c.invoker.Invoke(ctx, backend, prompt)
	if err != nil {
		return nil, invocationError(err, tier, backend.ID)
	}
	result := &CrossCheckResult{
		Primary:   primary,
		Consensus: primary.Content,
		Tier:      tier,
	}
	result.Summary = fmt.Sprintf("single backend %s on %s (tier too small for cross-check)", backend.ID, tier)
	return result, nil
}

func buildReviewPrompt(task, primaryOutput string) string {
	var sb strings.Builder
	sb.WriteString("You are reviewing another model's answer.\n\n")
	sb.WriteString("Original task:\n")
	sb.WriteString(task)
	sb.WriteString("\n\nAnswer under review:\n")
	sb.WriteString(primaryOutput)
	sb.WriteString("\n\nGive an overall assessment of the answer, then list any specific issues you find.")
	return sb.String()
}

func buildArbitratorPrompt(task, primaryOutput, reviewerOutput string) string {
	var sb strings.Builder
	sb.WriteString("Two models disagree about the following task. Produce the best final answer.\n\n")
	sb.WriteString("Original task:\n")
	sb.WriteString(task)
	sb.WriteString("\n\nFirst model's answer:\n")
	sb.WriteString(primaryOutput)
	sb.WriteString("\n\nReviewer's assessment:\n")
	sb.WriteString(reviewerOutput)
	return sb.String()
}

func buildCrossCheckSummary(r *CrossCheckResult) string {
	parts := []string{fmt.Sprintf("primary=%s", r.Primary.BackendID)}
	if r.Reviewer != nil {
		parts = append(parts, fmt.Sprintf("reviewer=%s", r.Reviewer.BackendID))
	}
	if r.Arbitrator != nil {
		parts = append(parts, fmt.Sprintf("arbitrator=%s", r.Arbitrator.BackendID))
	}
	return fmt.Sprintf("cross-check on %s: %s", r.Tier, strings.Join(parts, ", "))
}
