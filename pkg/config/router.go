package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/tiergate/pkg/catalog"
	"github.com/zen-systems/tiergate/pkg/quota"
)

// RouterConfig holds the routing decision configuration. Values are
// read once per routing call, never mutated by the core.
type RouterConfig struct {
	// DefaultTier is where requests land absent any other signal.
	DefaultTier catalog.Tier
	// MaxEscalationTier caps how far conflicts may escalate.
	MaxEscalationTier catalog.Tier
	// EnableCrossCheck turns multi-backend validation on for
	// high-complexity requests.
	EnableCrossCheck bool
	// EnableAutoEscalate lets conflicts escalate without confirmation.
	EnableAutoEscalate bool
	// CatalogFile overrides the built-in backend catalog.
	CatalogFile string
	// PolicyFile adds administrator policies to the built-in set.
	PolicyFile string
	// Budget configures the local admission gate. Nil admits everything.
	Budget *BudgetConfig
}

// BudgetConfig is the daily-budget section of router.yaml.
type BudgetConfig struct {
	MaxTokensPerDay int                     `yaml:"max_tokens_per_day"`
	MaxCostPerDay   float64                 `yaml:"max_cost_per_day"`
	Users           map[string]quota.Limits `yaml:"users"`
}

type routerConfigYAML struct {
	DefaultTier        string        `yaml:"default_tier"`
	MaxEscalationTier  string        `yaml:"max_escalation_tier"`
	EnableCrossCheck   *bool         `yaml:"enable_cross_check"`
	EnableAutoEscalate *bool         `yaml:"enable_auto_escalate"`
	CatalogFile        string        `yaml:"catalog_file"`
	PolicyFile         string        `yaml:"policy_file"`
	Budget             *BudgetConfig `yaml:"budget"`
}

// LoadRouterConfig reads router configuration from a YAML file.
func LoadRouterConfig(path string) (*RouterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw routerConfigYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse router config: %w", err)
	}

	cfg := DefaultRouterConfig()
	if raw.DefaultTier != "" {
		tier, err := catalog.ParseTier(raw.DefaultTier)
		if err != nil {
			return nil, fmt.Errorf("default_tier: %w", err)
		}
		cfg.DefaultTier = tier
	}
	if raw.MaxEscalationTier != "" {
		tier, err := catalog.ParseTier(raw.MaxEscalationTier)
		if err != nil {
			return nil, fmt.Errorf("max_escalation_tier: %w", err)
		}
		cfg.MaxEscalationTier = tier
	}
	if raw.EnableCrossCheck != nil {
		cfg.EnableCrossCheck = *raw.EnableCrossCheck
	}
	if raw.EnableAutoEscalate != nil {
		cfg.EnableAutoEscalate = *raw.EnableAutoEscalate
	}
	cfg.CatalogFile = raw.CatalogFile
	cfg.PolicyFile = raw.PolicyFile
	cfg.Budget = raw.Budget

	if cfg.MaxEscalationTier < cfg.DefaultTier {
		return nil, fmt.Errorf("max_escalation_tier %s below default_tier %s",
			cfg.MaxEscalationTier, cfg.DefaultTier)
	}

	return cfg, nil
}

// DefaultRouterConfig returns the default router configuration:
// requests start on the free tier, cross-check is on, and escalation
// asks for confirmation rather than spending automatically.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		DefaultTier:        catalog.Tier0,
		MaxEscalationTier:  catalog.MaxTier,
		EnableCrossCheck:   true,
		EnableAutoEscalate: false,
	}
}
