package policy

import (
	"fmt"
	"os"

	"github.com/zen-systems/tiergate/pkg/catalog"
	"gopkg.in/yaml.v3"
)

type policyFileYAML struct {
	Policies []policyYAML `yaml:"policies"`
}

type policyYAML struct {
	Name     string     `yaml:"name"`
	Priority int        `yaml:"priority"`
	Enabled  *bool      `yaml:"enabled"`
	Rules    []ruleYAML `yaml:"rules"`
}

type ruleYAML struct {
	Name      string        `yaml:"name"`
	Condition conditionYAML `yaml:"condition"`
	Action    actionYAML    `yaml:"action"`
	Risk      string        `yaml:"risk"`
}

type conditionYAML struct {
	TaskTypes   []string    `yaml:"task_types"`
	Complexity  []string    `yaml:"complexity"`
	FilePattern string      `yaml:"file_pattern"`
	MinCost     *float64    `yaml:"min_cost"`
	TimeWindow  *TimeWindow `yaml:"time_window"`
	UserRoles   []string    `yaml:"user_roles"`
}

type actionYAML struct {
	Type string `yaml:"type"`
	Tier string `yaml:"tier"`
}

// LoadPolicies reads a policy snapshot from a YAML file. Administrator
// policies loaded this way are evaluated alongside the built-in set
// according to their priorities.
func LoadPolicies(path string) ([]Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw policyFileYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse policies: %w", err)
	}

	policies := make([]Policy, 0, len(raw.Policies))
	for _, p := range raw.Policies {
		parsed, err := p.toPolicy()
		if err != nil {
			return nil, err
		}
		policies = append(policies, parsed)
	}
	return policies, nil
}

func (p policyYAML) toPolicy() (Policy, error) {
	if p.Name == "" {
		return Policy{}, fmt.Errorf("policy missing name")
	}
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	out := Policy{Name: p.Name, Priority: p.Priority, Enabled: enabled}
	for _, r := range p.Rules {
		rule, err := r.toRule(p.Name)
		if err != nil {
			return Policy{}, err
		}
		out.Rules = append(out.Rules, rule)
	}
	return out, nil
}

func (r ruleYAML) toRule(policyName string) (Rule, error) {
	actionType, err := ParseActionType(r.Action.Type)
	if err != nil {
		return Rule{}, fmt.Errorf("policy %s rule %s: %w", policyName, r.Name, err)
	}
	action := Action{Type: actionType}
	switch actionType {
	case ActionRouteTo, ActionDowngrade:
		tier, err := catalog.ParseTier(r.Action.Tier)
		if err != nil {
			return Rule{}, fmt.Errorf("policy %s rule %s: %w", policyName, r.Name, err)
		}
		action.TargetTier = tier
	}

	risk := RiskLow
	if r.Risk != "" {
		risk, err = ParseRisk(r.Risk)
		if err != nil {
			return Rule{}, fmt.Errorf("policy %s rule %s: %w", policyName, r.Name, err)
		}
	}

	return Rule{
		Name: r.Name,
		Condition: Condition{
			TaskTypes:   r.Condition.TaskTypes,
			Complexity:  r.Condition.Complexity,
			FilePattern: r.Condition.FilePattern,
			MinCost:     r.Condition.MinCost,
			TimeWindow:  r.Condition.TimeWindow,
			UserRoles:   r.Condition.UserRoles,
		},
		Action: action,
		Risk:   risk,
	}, nil
}

// DefaultPolicies returns the built-in policy set.
func DefaultPolicies() []Policy {
	costGuard := 1.0
	return []Policy{
		{
			Name:     "security_paths",
			Priority: 100,
			Enabled:  true,
			Rules: []Rule{
				{
					Name: "route_security_files_up",
					Condition: Condition{
						FilePattern: `.*(auth|security|secret|crypto).*`,
					},
					Action: Action{Type: ActionRouteTo, TargetTier: catalog.Tier2},
					Risk:   RiskHigh,
				},
			},
		},
		{
			Name:     "cost_guard",
			Priority: 50,
			Enabled:  true,
			Rules: []Rule{
				{
					Name: "deny_expensive_requests",
					Condition: Condition{
						MinCost: &costGuard,
					},
					Action: Action{Type: ActionDeny},
					Risk:   RiskCritical,
				},
			},
		},
		{
			Name:     "off_hours",
			Priority: 10,
			Enabled:  true,
			Rules: []Rule{
				{
					Name: "downgrade_overnight_batch",
					Condition: Condition{
						TaskTypes:  []string{"batch"},
						TimeWindow: &TimeWindow{Start: 22, End: 6},
					},
					Action: Action{Type: ActionDowngrade, TargetTier: catalog.Tier0},
					Risk:   RiskLow,
				},
			},
		},
	}
}
