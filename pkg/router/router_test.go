package router

import (
	"context"
	"strings"
	"testing"

	"github.com/zen-systems/tiergate/pkg/adapter"
	"github.com/zen-systems/tiergate/pkg/catalog"
	"github.com/zen-systems/tiergate/pkg/config"
	"github.com/zen-systems/tiergate/pkg/policy"
	"github.com/zen-systems/tiergate/pkg/quota"
)

type stubClassifier struct {
	complexity Complexity
	calls      int
}

func (s *stubClassifier) Classify(_ context.Context, _ string) Complexity {
	s.calls++
	return s.complexity
}

type countingRunner struct {
	inner CrossCheckRunner
	calls int
}

func (c *countingRunner) Run(ctx context.Context, prompt, taskType string, tier catalog.Tier) (*CrossCheckResult, error) {
	c.calls++
	return c.inner.Run(ctx, prompt, taskType, tier)
}

type denyGate struct{ reason string }

func (g denyGate) Check(_ context.Context, _ quota.Request) (quota.Status, error) {
	return quota.Status{Allowed: false, Reason: g.reason}, nil
}

func emptyMatcher(t *testing.T) *policy.Matcher {
	t.Helper()
	m, err := policy.NewMatcher(nil)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	return m
}

func TestPreferredTierBypassesEverything(t *testing.T) {
	cat := escalationCatalog()
	mock := adapter.NewMockInvoker()
	mock.Queue("t1-a", "direct answer")
	classifier := &stubClassifier{complexity: ComplexityHigh}
	runner := &countingRunner{inner: NewCrossChecker(cat, mock, nil)}

	r := New(cat, mock, emptyMatcher(t), nil, nil,
		WithClassifier(classifier), WithCrossCheckRunner(runner))

	tier := catalog.Tier1
	outcome, err := r.RouteRequest(context.Background(), Request{Prompt: "explain the architecture"},
		RoutingContext{PreferredTier: &tier})
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	if classifier.calls != 0 {
		t.Fatalf("preferred tier must skip classification, got %d calls", classifier.calls)
	}
	if runner.calls != 0 {
		t.Fatalf("preferred tier must skip cross-check, got %d runs", runner.calls)
	}
	if len(mock.Calls()) != 1 {
		t.Fatalf("expected exactly one backend call, got %d", len(mock.Calls()))
	}
	if outcome.Tier != catalog.Tier1 || outcome.Content != "direct answer" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestQuotaDeniedBeforeAnyInvocation(t *testing.T) {
	cat := escalationCatalog()
	mock := adapter.NewMockInvoker()
	classifier := &stubClassifier{complexity: ComplexityLow}

	r := New(cat, mock, emptyMatcher(t), denyGate{reason: "daily cap reached"}, nil,
		WithClassifier(classifier))

	_, err := r.RouteRequest(context.Background(), Request{Prompt: "hi", User: "u1"}, RoutingContext{})
	if !IsQuotaExceeded(err) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if len(mock.Calls()) != 0 {
		t.Fatalf("denied admission must not invoke backends, got %d calls", len(mock.Calls()))
	}
	if classifier.calls != 0 {
		t.Fatalf("denied admission must not classify")
	}

	if kind, ok := KindOf(err); !ok || kind != ErrQuotaExceeded {
		t.Fatalf("kind mismatch: %v", err)
	}
}

func TestPolicyForcesTierOverLowComplexity(t *testing.T) {
	cat := escalationCatalog()
	// A T2 backend so the forced tier has something to run on.
	backends := append(cat.All(), catalog.Backend{
		ID: "t2-a", Provider: "mock", Tier: catalog.Tier2,
		Capabilities: catalog.CapGeneral, Enabled: true, Priority: 1,
		PricePer1KIn: 0.003, PricePer1KOut: 0.015, RelativeCost: 5,
	})
	cat = catalog.New(backends, nil)

	matcher, err := policy.NewMatcher([]policy.Policy{
		{
			Name:     "security",
			Priority: 100,
			Enabled:  true,
			Rules: []policy.Rule{
				{
					Name:      "sensitive-paths",
					Condition: policy.Condition{FilePattern: `.*(auth|security).*`},
					Action:    policy.Action{Type: policy.ActionRouteTo, TargetTier: catalog.Tier2},
					Risk:      policy.RiskHigh,
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	mock := adapter.NewMockInvoker()
	mock.Queue("t2-a", "reviewed change")
	r := New(cat, mock, matcher, nil, nil,
		WithClassifier(&stubClassifier{complexity: ComplexityLow}))

	outcome, err := r.RouteRequest(context.Background(),
		Request{Prompt: "rename a variable"},
		RoutingContext{FilePath: "src/auth/login.ts"})
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	if outcome.Tier != catalog.Tier2 {
		t.Fatalf("policy must force T2 regardless of low complexity, got %s", outcome.Tier)
	}
	if outcome.BackendID != "t2-a" {
		t.Fatalf("expected the T2 backend, got %s", outcome.BackendID)
	}
	if outcome.Risk != policy.RiskHigh || outcome.Policy != "security" {
		t.Fatalf("outcome must carry the policy match: %+v", outcome)
	}
}

func TestPolicyDenyAbortsRoute(t *testing.T) {
	cat := escalationCatalog()
	matcher, err := policy.NewMatcher([]policy.Policy{
		{
			Name:     "lockdown",
			Priority: 1,
			Enabled:  true,
			Rules: []policy.Rule{
				{Name: "deny-all", Action: policy.Action{Type: policy.ActionDeny}, Risk: policy.RiskCritical},
			},
		},
	})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	mock := adapter.NewMockInvoker()
	r := New(cat, mock, matcher, nil, nil, WithClassifier(&stubClassifier{complexity: ComplexityLow}))

	_, err = r.RouteRequest(context.Background(), Request{Prompt: "hi"}, RoutingContext{})
	if !IsPolicyDenied(err) {
		t.Fatalf("expected policy denied, got %v", err)
	}
	if len(mock.Calls()) != 0 {
		t.Fatalf("denied route must not invoke backends")
	}
}

func TestConflictRequiresConfirmation(t *testing.T) {
	// T0 has exactly two backends (no arbitrator), next tier T1 is
	// paid, auto-escalation off.
	cat := escalationCatalog()
	mock := adapter.NewMockInvoker()
	mock.Queue("t0-a", "draft solution")
	mock.Queue("t0-b", "the approach is incorrect")

	r := New(cat, mock, emptyMatcher(t), nil, nil,
		WithClassifier(&stubClassifier{complexity: ComplexityHigh}))

	outcome, err := r.RouteRequest(context.Background(),
		Request{Prompt: "implement the parser"}, RoutingContext{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	if !outcome.RequiresConfirmation {
		t.Fatalf("expected confirmation request, got %+v", outcome)
	}
	if outcome.SuggestedTier != catalog.Tier1 {
		t.Fatalf("expected suggested T1, got %s", outcome.SuggestedTier)
	}
	if outcome.Content != "draft solution" {
		t.Fatalf("confirmation outcome returns the lower-tier consensus, got %q", outcome.Content)
	}
	if !strings.Contains(outcome.OptimizedPrompt, "ESCALATED FROM T0 TO T1") {
		t.Fatalf("optimized prompt missing escalation marker:\n%s", outcome.OptimizedPrompt)
	}
	if outcome.EscalationReason == "" {
		t.Fatalf("confirmation must carry a reason")
	}
	// Only primary and reviewer ran; the escalated call is the
	// caller's decision.
	if len(mock.Calls()) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(mock.Calls()))
	}
}

func TestConfirmationFollowUpUsesPreferredTier(t *testing.T) {
	cat := escalationCatalog()
	mock := adapter.NewMockInvoker()
	mock.Queue("t0-a", "draft solution")
	mock.Queue("t0-b", "this is wrong")
	mock.Queue("t1-a", "escalated answer")

	r := New(cat, mock, emptyMatcher(t), nil, nil,
		WithClassifier(&stubClassifier{complexity: ComplexityHigh}))

	first, err := r.RouteRequest(context.Background(), Request{Prompt: "implement the parser"}, RoutingContext{})
	if err != nil || !first.RequiresConfirmation {
		t.Fatalf("setup failed: %+v err=%v", first, err)
	}

	// Caller confirms by re-routing the optimized prompt at the
	// suggested tier.
	second, err := r.RouteRequest(context.Background(),
		Request{Prompt: first.OptimizedPrompt},
		RoutingContext{PreferredTier: &first.SuggestedTier})
	if err != nil {
		t.Fatalf("confirmed route: %v", err)
	}
	if second.Tier != catalog.Tier1 || second.Content != "escalated answer" {
		t.Fatalf("unexpected confirmed outcome: %+v", second)
	}
	if second.RequiresConfirmation {
		t.Fatalf("direct dispatch never asks for confirmation")
	}
}

func TestAutoEscalationProducesEscalatedOutcome(t *testing.T) {
	cat := escalationCatalog()
	mock := adapter.NewMockInvoker()
	mock.Queue("t0-a", "draft solution")
	mock.Queue("t0-b", "this fails on negatives")
	mock.Queue("t1-a", "fixed solution")
	mock.Queue("t1-b", "agreed, handles negatives now")

	cfg := config.DefaultRouterConfig()
	cfg.EnableAutoEscalate = true
	r := New(cat, mock, emptyMatcher(t), nil, cfg,
		WithClassifier(&stubClassifier{complexity: ComplexityHigh}))

	outcome, err := r.RouteRequest(context.Background(), Request{Prompt: "implement abs()"}, RoutingContext{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	if outcome.RequiresConfirmation {
		t.Fatalf("auto-escalation never asks for confirmation")
	}
	if outcome.Tier != catalog.Tier1 || outcome.Content != "fixed solution" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !strings.Contains(outcome.Summary, "(escalated from T0)") {
		t.Fatalf("summary missing annotation: %q", outcome.Summary)
	}
	// Usage is summed across both cross-check runs.
	if outcome.InputTokens != 400 {
		t.Fatalf("expected 4 calls * 100 input tokens, got %d", outcome.InputTokens)
	}
}

func TestCrossCheckSkippedForMediumComplexity(t *testing.T) {
	cat := escalationCatalog()
	mock := adapter.NewMockInvoker()
	mock.Queue("t0-a", "plain answer")
	runner := &countingRunner{inner: NewCrossChecker(cat, mock, nil)}

	r := New(cat, mock, emptyMatcher(t), nil, nil,
		WithClassifier(&stubClassifier{complexity: ComplexityMedium}),
		WithCrossCheckRunner(runner))

	outcome, err := r.RouteRequest(context.Background(), Request{Prompt: "summarize this note"}, RoutingContext{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if runner.calls != 0 {
		t.Fatalf("medium complexity must not cross-check")
	}
	if outcome.Content != "plain answer" || len(mock.Calls()) != 1 {
		t.Fatalf("expected one plain call, got %+v", outcome)
	}
}

func TestCrossCheckContextOverride(t *testing.T) {
	cat := escalationCatalog()
	mock := adapter.NewMockInvoker()
	mock.Queue("t0-a", "plain answer")
	runner := &countingRunner{inner: NewCrossChecker(cat, mock, nil)}
	disabled := false

	r := New(cat, mock, emptyMatcher(t), nil, nil,
		WithClassifier(&stubClassifier{complexity: ComplexityHigh}),
		WithCrossCheckRunner(runner))

	_, err := r.RouteRequest(context.Background(), Request{Prompt: "explain the design"},
		RoutingContext{EnableCrossCheck: &disabled})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if runner.calls != 0 {
		t.Fatalf("caller override must disable cross-check")
	}
}

func TestCancelledContextFailsFast(t *testing.T) {
	cat := escalationCatalog()
	mock := adapter.NewMockInvoker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(cat, mock, emptyMatcher(t), nil, nil,
		WithClassifier(&stubClassifier{complexity: ComplexityHigh}))

	_, err := r.RouteRequest(ctx, Request{Prompt: "explain"}, RoutingContext{})
	if !IsCancelled(err) {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestNoBackendAvailable(t *testing.T) {
	cat := catalog.New(nil, nil)
	mock := adapter.NewMockInvoker()

	r := New(cat, mock, emptyMatcher(t), nil, nil,
		WithClassifier(&stubClassifier{complexity: ComplexityLow}))

	_, err := r.RouteRequest(context.Background(), Request{Prompt: "hi"}, RoutingContext{})
	if !IsNoBackendAvailable(err) {
		t.Fatalf("expected no backend available, got %v", err)
	}
}

func TestPreviewPolicyNoBackendCalls(t *testing.T) {
	cat := escalationCatalog()
	mock := adapter.NewMockInvoker()

	matcher, err := policy.NewMatcher(policy.DefaultPolicies())
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	r := New(cat, mock, matcher, nil, nil)

	preview := r.PreviewPolicy(
		Request{Prompt: "refactor the auth flow"},
		RoutingContext{FilePath: "internal/auth/session.go"})

	if len(mock.Calls()) != 0 {
		t.Fatalf("preview must not invoke backends, got %d calls", len(mock.Calls()))
	}
	if preview.Policy != "security_paths" {
		t.Fatalf("expected security policy match, got %+v", preview)
	}
	if preview.Action == nil || preview.Action.Type != policy.ActionRouteTo {
		t.Fatalf("expected route_to action, got %+v", preview.Action)
	}
	if preview.Tier != catalog.Tier2 {
		t.Fatalf("expected previewed tier T2, got %s", preview.Tier)
	}
	if preview.Complexity != ComplexityHigh {
		t.Fatalf("refactor keyword should classify high, got %s", preview.Complexity)
	}
}

func TestPreviewPolicyDeny(t *testing.T) {
	cat := escalationCatalog()
	matcher, err := policy.NewMatcher([]policy.Policy{
		{
			Name:     "lockdown",
			Priority: 1,
			Enabled:  true,
			Rules: []policy.Rule{
				{Name: "deny-all", Action: policy.Action{Type: policy.ActionDeny}, Risk: policy.RiskCritical},
			},
		},
	})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	r := New(cat, adapter.NewMockInvoker(), matcher, nil, nil)
	preview := r.PreviewPolicy(Request{Prompt: "hi"}, RoutingContext{})
	if !preview.Denied {
		t.Fatalf("expected denied preview, got %+v", preview)
	}
	if preview.Risk != policy.RiskCritical {
		t.Fatalf("expected critical risk, got %s", preview.Risk)
	}
}

func TestQualityCriticalSelectsSecondHighestTier(t *testing.T) {
	cat := escalationCatalog()
	backends := append(cat.All(),
		catalog.Backend{ID: "t2-a", Provider: "mock", Tier: catalog.Tier2, Capabilities: catalog.CapGeneral, Enabled: true, Priority: 1, RelativeCost: 5},
		catalog.Backend{ID: "t3-a", Provider: "mock", Tier: catalog.Tier3, Capabilities: catalog.CapGeneral, Enabled: true, Priority: 1, RelativeCost: 9},
	)
	cat = catalog.New(backends, nil)

	mock := adapter.NewMockInvoker()
	mock.Queue("t2-a", "careful answer")
	r := New(cat, mock, emptyMatcher(t), nil, nil,
		WithClassifier(&stubClassifier{complexity: ComplexityLow}))

	outcome, err := r.RouteRequest(context.Background(), Request{Prompt: "hi"},
		RoutingContext{Quality: QualityCritical})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if outcome.Tier != catalog.Tier2 {
		t.Fatalf("critical quality selects the second-highest tier, got %s", outcome.Tier)
	}
}

func TestHighComplexityHighQualityBumpsTier(t *testing.T) {
	cat := escalationCatalog()
	mock := adapter.NewMockInvoker()
	mock.Queue("t1-a", "thorough answer")
	mock.Queue("t1-b", "agreed")
	disabled := false

	r := New(cat, mock, emptyMatcher(t), nil, nil,
		WithClassifier(&stubClassifier{complexity: ComplexityHigh}))

	outcome, err := r.RouteRequest(context.Background(), Request{Prompt: "analyze the tradeoffs"},
		RoutingContext{Quality: QualityHigh, EnableCrossCheck: &disabled})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if outcome.Tier != catalog.Tier1 {
		t.Fatalf("high/high should bump one tier above default, got %s", outcome.Tier)
	}
}
