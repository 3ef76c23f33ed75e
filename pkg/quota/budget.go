package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Limits caps one user's daily spend.
type Limits struct {
	MaxTokensPerDay int     `yaml:"max_tokens_per_day"`
	MaxCostPerDay   float64 `yaml:"max_cost_per_day"`
}

// BudgetGate is a fixed-window daily budget gate. Windows reset at
// midnight UTC. Safe for concurrent use. With WithUsageFile the window
// usage survives process restarts; without it the gate is in-memory
// only.
type BudgetGate struct {
	mu        sync.Mutex
	defaults  Limits
	perUser   map[string]Limits
	spent     map[string]*usage
	now       func() time.Time
	usageFile string
}

type usage struct {
	windowStart time.Time
	tokens      int
	cost        float64
}

// BudgetOption configures a BudgetGate.
type BudgetOption func(*BudgetGate)

// WithUserLimits sets per-user limits overriding the defaults.
func WithUserLimits(limits map[string]Limits) BudgetOption {
	return func(g *BudgetGate) {
		for user, l := range limits {
			g.perUser[user] = l
		}
	}
}

// WithBudgetClock overrides the gate's clock for tests.
func WithBudgetClock(now func() time.Time) BudgetOption {
	return func(g *BudgetGate) {
		g.now = now
	}
}

// WithUsageFile persists window usage to a JSON file so the daily
// budget accumulates across short-lived processes. Existing usage is
// loaded at construction; each admitted request writes the file back.
func WithUsageFile(path string) BudgetOption {
	return func(g *BudgetGate) {
		g.usageFile = path
	}
}

// NewBudgetGate creates a daily budget gate with default limits. A zero
// limit field means unlimited for that dimension.
func NewBudgetGate(defaults Limits, opts ...BudgetOption) *BudgetGate {
	g := &BudgetGate{
		defaults: defaults,
		perUser:  make(map[string]Limits),
		spent:    make(map[string]*usage),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.usageFile != "" {
		g.loadUsage()
	}
	return g
}

type persistedUsage struct {
	WindowStart time.Time `json:"window_start"`
	Tokens      int       `json:"tokens"`
	Cost        float64   `json:"cost"`
}

func (g *BudgetGate) loadUsage() {
	data, err := os.ReadFile(g.usageFile)
	if err != nil {
		return
	}
	var saved map[string]persistedUsage
	if err := json.Unmarshal(data, &saved); err != nil {
		return
	}
	for user, p := range saved {
		g.spent[user] = &usage{
			windowStart: p.WindowStart,
			tokens:      p.Tokens,
			cost:        p.Cost,
		}
	}
}

// saveUsage writes the current windows back to the usage file. Callers
// hold g.mu. Write failures are ignored; the gate keeps working from
// memory.
func (g *BudgetGate) saveUsage() {
	saved := make(map[string]persistedUsage, len(g.spent))
	for user, u := range g.spent {
		saved[user] = persistedUsage{
			WindowStart: u.windowStart,
			Tokens:      u.tokens,
			Cost:        u.cost,
		}
	}
	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(g.usageFile, data, 0o644)
}

// Check admits the request if the user's remaining daily budget covers
// the estimate. Admission reserves the estimate against the window so
// concurrent requests cannot jointly overrun it.
func (g *BudgetGate) Check(_ context.Context, req Request) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	windowStart := now.Truncate(24 * time.Hour)
	resetAt := windowStart.Add(24 * time.Hour)

	limits := g.defaults
	if l, ok := g.perUser[req.User]; ok {
		limits = l
	}

	u := g.spent[req.User]
	if u == nil || u.windowStart.Before(windowStart) {
		u = &usage{windowStart: windowStart}
		g.spent[req.User] = u
	}

	status := Status{
		Allowed: true,
		ResetAt: resetAt,
	}
	if limits.MaxTokensPerDay > 0 {
		status.RemainingToken = limits.MaxTokensPerDay - u.tokens
		if u.tokens+req.EstimatedTokens > limits.MaxTokensPerDay {
			status.Allowed = false
			status.Reason = fmt.Sprintf("daily token budget exceeded: %d of %d used", u.tokens, limits.MaxTokensPerDay)
		}
	}
	if limits.MaxCostPerDay > 0 {
		status.RemainingCost = limits.MaxCostPerDay - u.cost
		if u.cost+req.EstimatedCost > limits.MaxCostPerDay {
			status.Allowed = false
			status.Reason = fmt.Sprintf("daily cost budget exceeded: %.4f of %.4f used", u.cost, limits.MaxCostPerDay)
		}
	}

	if status.Allowed {
		u.tokens += req.EstimatedTokens
		u.cost += req.EstimatedCost
		if g.usageFile != "" {
			g.saveUsage()
		}
	}
	return status, nil
}
