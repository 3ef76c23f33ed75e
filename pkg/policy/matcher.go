package policy

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Context is the request snapshot a rule condition is evaluated
// against.
type Context struct {
	TaskType      string
	Complexity    string
	FilePath      string
	UserRole      string
	EstimatedCost float64
}

// Match is the result of evaluating the policy set against a context.
// Action is nil when no rule matched anywhere.
type Match struct {
	Policy string
	Rule   string
	Action *Action
	Risk   RiskLevel
}

// Matcher evaluates an immutable policy snapshot. First match wins
// globally: policies are walked highest priority first, each policy's
// rules in order, and evaluation stops at the first matching rule.
type Matcher struct {
	policies []Policy
	patterns map[string]*regexp.Regexp
	now      func() time.Time
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithClock overrides the matcher's clock, used by time-window
// conditions. Tests pin this to a fixed instant.
func WithClock(now func() time.Time) MatcherOption {
	return func(m *Matcher) {
		m.now = now
	}
}

// NewMatcher compiles a policy snapshot. Disabled policies are dropped
// and the rest are sorted by priority descending (stable, so equal
// priorities keep their given order). File patterns are compiled up
// front so a bad pattern surfaces at load time, not mid-route.
func NewMatcher(policies []Policy, opts ...MatcherOption) (*Matcher, error) {
	m := &Matcher{
		patterns: make(map[string]*regexp.Regexp),
		now:      time.Now,
	}
	for _, p := range policies {
		if !p.Enabled {
			continue
		}
		m.policies = append(m.policies, p)
		for _, rule := range p.Rules {
			pattern := rule.Condition.FilePattern
			if pattern == "" {
				continue
			}
			if _, ok := m.patterns[pattern]; ok {
				continue
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("policy %s rule %s: invalid file pattern: %w", p.Name, rule.Name, err)
			}
			m.patterns[pattern] = re
		}
	}
	sort.SliceStable(m.policies, func(i, j int) bool {
		return m.policies[i].Priority > m.policies[j].Priority
	})
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Policies returns the enabled policies in evaluation order.
func (m *Matcher) Policies() []Policy {
	return append([]Policy(nil), m.policies...)
}

// Match evaluates the snapshot against a context and returns the first
// matching rule's action and risk. No match yields a nil action and
// RiskLow.
func (m *Matcher) Match(ctx Context) Match {
	hour := m.now().Hour()
	for _, p := range m.policies {
		for _, rule := range p.Rules {
			if !m.conditionHolds(rule.Condition, ctx, hour) {
				continue
			}
			action := rule.Action
			return Match{
				Policy: p.Name,
				Rule:   rule.Name,
				Action: &action,
				Risk:   MaxRisk(RiskLow, rule.Risk),
			}
		}
	}
	return Match{Risk: RiskLow}
}

func (m *Matcher) conditionHolds(cond Condition, ctx Context, hour int) bool {
	if len(cond.TaskTypes) > 0 && !contains(cond.TaskTypes, ctx.TaskType) {
		return false
	}
	if len(cond.Complexity) > 0 && !contains(cond.Complexity, ctx.Complexity) {
		return false
	}
	if cond.FilePattern != "" {
		if ctx.FilePath == "" {
			return false
		}
		re := m.patterns[cond.FilePattern]
		if re == nil || !re.MatchString(ctx.FilePath) {
			return false
		}
	}
	if cond.MinCost != nil && ctx.EstimatedCost < *cond.MinCost {
		return false
	}
	if cond.TimeWindow != nil && !cond.TimeWindow.Contains(hour) {
		return false
	}
	if len(cond.UserRoles) > 0 && !contains(cond.UserRoles, ctx.UserRole) {
		return false
	}
	return true
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}
