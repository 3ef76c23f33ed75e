// Package policy evaluates routing policies: ordered condition→action
// rules that can force, deny, or adjust tier selection before any
// backend is invoked.
package policy

import (
	"fmt"

	"github.com/zen-systems/tiergate/pkg/catalog"
)

// RiskLevel is the aggregated severity attached to a policy match.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = [...]string{"low", "medium", "high", "critical"}

func (r RiskLevel) String() string {
	if r >= 0 && int(r) < len(riskNames) {
		return riskNames[r]
	}
	return "unknown"
}

// ParseRisk converts a risk name to a RiskLevel.
func ParseRisk(s string) (RiskLevel, error) {
	for i, name := range riskNames {
		if s == name {
			return RiskLevel(i), nil
		}
	}
	return RiskLow, fmt.Errorf("unknown risk level %q", s)
}

// MaxRisk returns the higher of two risk levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if a > b {
		return a
	}
	return b
}

// ActionType enumerates what a matched rule does to the route.
type ActionType int

const (
	ActionAllow ActionType = iota
	ActionDeny
	ActionEscalate
	ActionDowngrade
	ActionRouteTo
)

var actionNames = [...]string{"allow", "deny", "escalate", "downgrade", "route_to"}

func (a ActionType) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// ParseActionType converts an action name to an ActionType.
func ParseActionType(s string) (ActionType, error) {
	for i, name := range actionNames {
		if s == name {
			return ActionType(i), nil
		}
	}
	return ActionAllow, fmt.Errorf("unknown action type %q", s)
}

// Action is what a matched rule instructs the router to do.
// TargetTier is meaningful only for ActionRouteTo and ActionDowngrade.
type Action struct {
	Type       ActionType
	TargetTier catalog.Tier
}

// TimeWindow is an hour-of-day window [Start,End). When Start > End the
// window wraps past midnight: {18,8} means after 18:00 or before 08:00.
type TimeWindow struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Contains reports whether the given hour (0-23) falls in the window.
func (w TimeWindow) Contains(hour int) bool {
	if w.Start <= w.End {
		return hour >= w.Start && hour < w.End
	}
	return hour >= w.Start || hour < w.End
}

// Condition is the conjunctive predicate of a rule. Every present field
// must hold for the rule to match; an omitted field always matches.
type Condition struct {
	// TaskTypes matches when the request's task type is in the set.
	TaskTypes []string
	// Complexity matches when the classified bucket name is in the set.
	Complexity []string
	// FilePattern is a regular expression tested against the request's
	// file path, when one is supplied.
	FilePattern string
	// MinCost matches when the request's estimated cost is at or above
	// the threshold. It identifies expensive requests.
	MinCost *float64
	// TimeWindow matches on the local hour of the matcher's clock.
	TimeWindow *TimeWindow
	// UserRoles matches when the request's user role is in the set.
	UserRoles []string
}

// Rule pairs a condition with an action and a risk severity.
type Rule struct {
	Name      string
	Condition Condition
	Action    Action
	Risk      RiskLevel
}

// Policy is an ordered set of rules with an evaluation priority.
// Higher-priority policies are evaluated first; disabled policies are
// skipped entirely.
type Policy struct {
	Name     string
	Priority int
	Enabled  bool
	Rules    []Rule
}
