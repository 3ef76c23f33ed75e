// Package router is the decision core: it classifies a request,
// evaluates policies, picks a tier and backend, optionally
// cross-validates the result across backends, and decides whether a
// conflict escalates. It is a pure decision engine over injected
// snapshots — no retries, no persistence, no logging of its own.
package router

import (
	"context"
	"fmt"

	"github.com/zen-systems/tiergate/pkg/adapter"
	"github.com/zen-systems/tiergate/pkg/catalog"
	"github.com/zen-systems/tiergate/pkg/config"
	"github.com/zen-systems/tiergate/pkg/cost"
	"github.com/zen-systems/tiergate/pkg/policy"
	"github.com/zen-systems/tiergate/pkg/quota"
)

// Request is the inference request being routed.
type Request struct {
	Prompt  string
	User    string
	Project string
}

// RoutingContext carries the caller's routing preferences. Nil pointer
// fields mean "not set"; boolean pointers override the configured
// defaults for one call.
type RoutingContext struct {
	TaskType string
	// PreferredTier bypasses classification, tier-affecting policy
	// actions, and cross-check entirely. Used for direct dispatch and
	// for confirming a suggested escalation.
	PreferredTier *catalog.Tier
	Quality       string
	FilePath      string
	UserRole      string
	// EstimatedCost lets the caller supply a pre-computed estimate for
	// policy cost conditions and admission.
	EstimatedCost      *float64
	EnableCrossCheck   *bool
	EnableAutoEscalate *bool
}

// Outcome is the terminal result of a successful route. When
// RequiresConfirmation is set the escalated call was NOT made; the
// caller confirms by re-routing with SuggestedTier as PreferredTier.
type Outcome struct {
	Content      string
	BackendID    string
	Provider     string
	InputTokens  int
	OutputTokens int
	Cost         float64
	Tier         catalog.Tier
	Complexity   Complexity
	Risk         policy.RiskLevel
	Policy       string
	Summary      string

	RequiresConfirmation bool
	SuggestedTier        catalog.Tier
	EscalationReason     string
	OptimizedPrompt      string
}

// Preview is the dry-run output of PreviewPolicy.
type Preview struct {
	Policy     string
	Rule       string
	Action     *policy.Action
	Risk       policy.RiskLevel
	Tier       catalog.Tier
	Complexity Complexity
	Denied     bool
}

// Router composes the decision pipeline over immutable snapshots of
// the catalog, policy set, and configuration.
type Router struct {
	catalog    *catalog.Catalog
	invoker    adapter.Invoker
	matcher    *policy.Matcher
	gate       quota.Gate
	cfg        *config.RouterConfig
	classifier ComplexityClassifier
	detector   ConflictDetector
	runner     CrossCheckRunner
	picker     *BackendPicker
	selector   *TierSelector
}

// Option configures a Router.
type Option func(*Router)

// WithClassifier replaces the complexity classifier.
func WithClassifier(c ComplexityClassifier) Option {
	return func(r *Router) {
		r.classifier = c
	}
}

// WithConflictDetector replaces the conflict detection heuristic.
func WithConflictDetector(d ConflictDetector) Option {
	return func(r *Router) {
		r.detector = d
	}
}

// WithCrossCheckRunner replaces the cross-check implementation.
func WithCrossCheckRunner(runner CrossCheckRunner) Option {
	return func(r *Router) {
		r.runner = runner
	}
}

// New creates a Router over the given snapshots. Gate may be nil to
// admit everything; cfg may be nil for the defaults.
func New(cat *catalog.Catalog, invoker adapter.Invoker, matcher *policy.Matcher, gate quota.Gate, cfg *config.RouterConfig, opts ...Option) *Router {
	if gate == nil {
		gate = quota.AllowAll{}
	}
	if cfg == nil {
		cfg = config.DefaultRouterConfig()
	}
	r := &Router{
		catalog: cat,
		invoker: invoker,
		matcher: matcher,
		gate:    gate,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.detector == nil {
		r.detector = KeywordDetector{}
	}
	if r.classifier == nil {
		r.classifier = NewClassifier(cat, invoker)
	}
	if r.runner == nil {
		r.runner = NewCrossChecker(cat, invoker, r.detector)
	}
	r.picker = NewBackendPicker(cat)
	r.selector = NewTierSelector(cat, cfg.DefaultTier)
	return r
}

// RouteRequest is the sole routing entry point.
func (r *Router) RouteRequest(ctx context.Context, req Request, rc RoutingContext) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RouteError{Kind: ErrCancelled, Err: err}
	}

	estTokens, estCost := r.preEstimate(req, rc)

	// Admission is a synchronous external gate, evaluated exactly once
	// before any backend call.
	status, err := r.gate.Check(ctx, quota.Request{
		User:            req.User,
		Project:         req.Project,
		EstimatedTokens: estTokens,
		EstimatedCost:   estCost,
	})
	if err != nil {
		return nil, fmt.Errorf("quota check failed: %w", err)
	}
	if !status.Allowed {
		return nil, &RouteError{Kind: ErrQuotaExceeded, Reason: status.Reason, Quota: &status}
	}

	// Hard override: direct dispatch, exactly one backend call.
	if rc.PreferredTier != nil {
		return r.routeDirect(ctx, req, rc, *rc.PreferredTier)
	}

	complexity := r.classifier.Classify(ctx, req.Prompt)
	if err := ctx.Err(); err != nil {
		return nil, &RouteError{Kind: ErrCancelled, Err: err}
	}

	match := r.matcher.Match(policy.Context{
		TaskType:      rc.TaskType,
		Complexity:    complexity.String(),
		FilePath:      rc.FilePath,
		UserRole:      rc.UserRole,
		EstimatedCost: estCost,
	})

	tier, err := r.selector.Select(match, complexity, rc.Quality)
	if err != nil {
		return nil, err
	}

	crossCheck := r.cfg.EnableCrossCheck
	if rc.EnableCrossCheck != nil {
		crossCheck = *rc.EnableCrossCheck
	}
	autoEscalate := r.cfg.EnableAutoEscalate
	if rc.EnableAutoEscalate != nil {
		autoEscalate = *rc.EnableAutoEscalate
	}

	// Cross-check doubles or triples cost, so it is reserved for
	// high-complexity requests.
	if crossCheck && complexity == ComplexityHigh {
		result, err := r.runner.Run(ctx, req.Prompt, rc.TaskType, tier)
		if err != nil {
			return nil, err
		}
		controller := NewEscalationController(r.catalog, r.runner, r.cfg.MaxEscalationTier, autoEscalate)
		decision, err := controller.Resolve(ctx, req.Prompt, rc.TaskType, result)
		if err != nil {
			return nil, err
		}
		return outcomeFromDecision(decision, complexity, match), nil
	}

	backend, err := r.picker.Pick(tier, rc.TaskType)
	if err != nil {
		return nil, err
	}
	resp, err := r.invoker.Invoke(ctx, backend, req.Prompt)
	if err != nil {
		return nil, invocationError(err, tier, backend.ID)
	}
	return &Outcome{
		Content:      resp.Content,
		BackendID:    resp.BackendID,
		Provider:     resp.Provider,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Cost:         resp.Cost,
		Tier:         tier,
		Complexity:   complexity,
		Risk:         match.Risk,
		Policy:       match.Policy,
		Summary:      fmt.Sprintf("single call to %s on %s", backend.ID, tier),
	}, nil
}

// PreviewPolicy simulates PolicyMatcher and TierSelector for a context
// without any backend call. Complexity comes from the deterministic
// heuristic so the preview stays free and repeatable.
func (r *Router) PreviewPolicy(req Request, rc RoutingContext) *Preview {
	complexity := HeuristicComplexity(req.Prompt)
	_, estCost := r.preEstimate(req, rc)

	match := r.matcher.Match(policy.Context{
		TaskType:      rc.TaskType,
		Complexity:    complexity.String(),
		FilePath:      rc.FilePath,
		UserRole:      rc.UserRole,
		EstimatedCost: estCost,
	})

	preview := &Preview{
		Policy:     match.Policy,
		Rule:       match.Rule,
		Action:     match.Action,
		Risk:       match.Risk,
		Complexity: complexity,
	}

	if rc.PreferredTier != nil {
		preview.Tier = *rc.PreferredTier
		return preview
	}

	tier, err := r.selector.Select(match, complexity, rc.Quality)
	if err != nil {
		preview.Denied = true
		preview.Tier = r.cfg.DefaultTier
		return preview
	}
	preview.Tier = tier
	return preview
}

// routeDirect handles the preferred-tier override: no classification,
// no policy tier actions, no cross-check. One pick, one call.
func (r *Router) routeDirect(ctx context.Context, req Request, rc RoutingContext, tier catalog.Tier) (*Outcome, error) {
	backend, err := r.picker.Pick(tier, rc.TaskType)
	if err != nil {
		return nil, err
	}
	resp, err := r.invoker.Invoke(ctx, backend, req.Prompt)
	if err != nil {
		return nil, invocationError(err, tier, backend.ID)
	}
	return &Outcome{
		Content:      resp.Content,
		BackendID:    resp.BackendID,
		Provider:     resp.Provider,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Cost:         resp.Cost,
		Tier:         tier,
		Summary:      fmt.Sprintf("direct dispatch to %s on %s (preferred tier)", backend.ID, tier),
	}, nil
}

// preEstimate computes the token and cost estimates used by admission
// and cost-threshold policy conditions. The caller's pre-estimated
// cost, when supplied, wins.
func (r *Router) preEstimate(req Request, rc RoutingContext) (int, float64) {
	tokens := cost.EstimateTokens(req.Prompt)
	if rc.EstimatedCost != nil {
		return tokens, *rc.EstimatedCost
	}
	tier := r.cfg.DefaultTier
	if rc.PreferredTier != nil {
		tier = *rc.PreferredTier
	}
	if b, ok := cost.Cheapest(r.catalog.BackendsForTier(tier)); ok {
		return tokens, cost.Estimate(tokens, tokens, b)
	}
	return tokens, 0
}

func outcomeFromDecision(d *EscalationDecision, complexity Complexity, match policy.Match) *Outcome {
	attributed := d.Result.Primary
	if d.Result.Arbitrator != nil {
		attributed = d.Result.Arbitrator
	}

	o := &Outcome{
		Content:    d.Result.Consensus,
		BackendID:  attributed.BackendID,
		Provider:   attributed.Provider,
		Tier:       d.Result.Tier,
		Complexity: complexity,
		Risk:       match.Risk,
		Policy:     match.Policy,
		Summary:    d.Summary,
	}
	for _, run := range d.Runs {
		for _, res := range run.Results() {
			o.InputTokens += res.InputTokens
			o.OutputTokens += res.OutputTokens
			o.Cost += res.Cost
		}
	}
	if d.RequiresConfirmation {
		o.RequiresConfirmation = true
		o.SuggestedTier = d.SuggestedTier
		o.EscalationReason = d.Reason
		o.OptimizedPrompt = d.EscalationPrompt
	}
	return o
}
