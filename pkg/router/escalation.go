package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/zen-systems/tiergate/pkg/catalog"
)

// EscalationState enumerates the terminal and intermediate states of
// the escalation machine.
type EscalationState int

const (
	StateResolved EscalationState = iota
	StateConflictDetected
	StateAutoEscalating
	StateAwaitingConfirmation
)

var escalationStateNames = [...]string{
	"resolved",
	"conflict_detected",
	"auto_escalating",
	"awaiting_confirmation",
}

func (s EscalationState) String() string {
	if s >= 0 && int(s) < len(escalationStateNames) {
		return escalationStateNames[s]
	}
	return "unknown"
}

// EscalationDecision is the machine's terminal output. Exactly one of
// the two terminal shapes holds: a resolved result, or a request for
// confirmation. Never both.
type EscalationDecision struct {
	State   EscalationState
	Result  *CrossCheckResult
	Runs    []*CrossCheckResult
	Summary string

	RequiresConfirmation bool
	SuggestedTier        catalog.Tier
	Reason               string
	EscalationPrompt     string
}

// EscalationController decides, after a cross-check, whether a conflict
// auto-escalates, waits for a human, or resolves in place.
type EscalationController struct {
	catalog      *catalog.Catalog
	runner       CrossCheckRunner
	maxTier      catalog.Tier
	autoEscalate bool
}

// NewEscalationController creates a controller bound to one routing
// call's configuration snapshot.
func NewEscalationController(cat *catalog.Catalog, runner CrossCheckRunner, maxTier catalog.Tier, autoEscalate bool) *EscalationController {
	return &EscalationController{
		catalog:      cat,
		runner:       runner,
		maxTier:      maxTier,
		autoEscalate: autoEscalate,
	}
}

// Resolve evaluates the transitions in order against a fresh
// cross-check result. Auto-escalation re-runs the cross-check at the
// next tier exactly once; it never chains further within one call.
func (e *EscalationController) Resolve(ctx context.Context, prompt, taskType string, result *CrossCheckResult) (*EscalationDecision, error) {
	runs := []*CrossCheckResult{result}

	if len(result.Conflicts) == 0 {
		return &EscalationDecision{
			State:   StateResolved,
			Result:  result,
			Runs:    runs,
			Summary: result.Summary + " (no conflicts)",
		}, nil
	}

	next, hasNext := e.catalog.NextTier(result.Tier)
	withinMax := hasNext && next <= e.maxTier

	if e.autoEscalate && withinMax {
		escalated, err := e.runner.Run(ctx, prompt, taskType, next)
		if err != nil {
			return nil, err
		}
		runs = append(runs, escalated)
		return &EscalationDecision{
			State:   StateResolved,
			Result:  escalated,
			Runs:    runs,
			Summary: fmt.Sprintf("%s (escalated from %s)", escalated.Summary, result.Tier),
		}, nil
	}

	if !e.autoEscalate && withinMax && !e.catalog.IsTierFree(next) {
		reason := fmt.Sprintf("%d conflict(s) detected at %s; escalating to %s incurs cost and needs confirmation",
			len(result.Conflicts), result.Tier, next)
		return &EscalationDecision{
			State:                StateAwaitingConfirmation,
			Result:               result,
			Runs:                 runs,
			Summary:              result.Summary + " (awaiting confirmation)",
			RequiresConfirmation: true,
			SuggestedTier:        next,
			Reason:               reason,
			EscalationPrompt:     BuildEscalationPrompt(prompt, result.Consensus, result.Conflicts, result.Tier, next),
		}, nil
	}

	// No further escalation is possible: terminal tier, above the cap,
	// or the next tier is also free with auto-escalation off.
	summary := result.Summary + " (unresolved conflicts)"
	if result.Arbitrator != nil {
		summary = result.Summary + " (conflicts resolved with arbitrator)"
	}
	return &EscalationDecision{
		State:   StateResolved,
		Result:  result,
		Runs:    runs,
		Summary: summary,
	}, nil
}

// BuildEscalationPrompt bundles the original request, the lower-tier
// consensus, and the conflicts into the prompt the caller submits when
// confirming an escalation.
func BuildEscalationPrompt(request, consensus string, conflicts []string, from, to catalog.Tier) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ESCALATED FROM %s TO %s\n\n", from, to))
	sb.WriteString("Original request:\n")
	sb.WriteString(request)
	sb.WriteString("\n\nLower-tier consensus:\n")
	sb.WriteString(consensus)
	sb.WriteString("\n\nDetected conflicts:\n")
	for _, c := range conflicts {
		sb.WriteString("- ")
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	sb.WriteString("\nResolve the conflicts and produce an improved answer.")
	return sb.String()
}
