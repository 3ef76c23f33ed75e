package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog is a read-only snapshot of the available backends and tier
// settings. A snapshot is built once and never mutated; administrative
// changes produce a new snapshot that takes effect for decisions that
// start after the swap.
type Catalog struct {
	backends []Backend
	tiers    map[Tier]TierSettings
}

// TierSettings holds per-tier administrative flags.
type TierSettings struct {
	Enabled bool `yaml:"enabled"`
	Free    bool `yaml:"free"`
}

// catalogYAML is the on-disk shape of a catalog file.
type catalogYAML struct {
	Backends []backendYAML        `yaml:"backends"`
	Tiers    map[string]*tierYAML `yaml:"tiers"`
}

type tierYAML struct {
	Enabled *bool `yaml:"enabled"`
	Free    *bool `yaml:"free"`
}

// New builds a catalog snapshot from backends and tier settings.
// Backends keep their given order; tiers missing from settings default
// to enabled, with only Tier0 free.
func New(backends []Backend, tiers map[Tier]TierSettings) *Catalog {
	resolved := make(map[Tier]TierSettings, int(MaxTier)+1)
	for t := Tier0; t <= MaxTier; t++ {
		settings := TierSettings{Enabled: true, Free: t == Tier0}
		if s, ok := tiers[t]; ok {
			settings = s
		}
		resolved[t] = settings
	}
	return &Catalog{backends: append([]Backend(nil), backends...), tiers: resolved}
}

// Load reads a catalog snapshot from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw catalogYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	backends := make([]Backend, 0, len(raw.Backends))
	for _, b := range raw.Backends {
		if b.ID == "" {
			return nil, fmt.Errorf("catalog backend missing id")
		}
		backends = append(backends, b.toBackend())
	}

	tiers := make(map[Tier]TierSettings)
	for name, cfg := range raw.Tiers {
		tier, err := ParseTier(name)
		if err != nil {
			return nil, err
		}
		settings := TierSettings{Enabled: true, Free: tier == Tier0}
		if cfg != nil {
			if cfg.Enabled != nil {
				settings.Enabled = *cfg.Enabled
			}
			if cfg.Free != nil {
				settings.Free = *cfg.Free
			}
		}
		tiers[tier] = settings
	}

	return New(backends, tiers), nil
}

// BackendsForTier returns the enabled backends of an enabled tier,
// sorted by priority ascending. Returns nil when the tier itself is
// disabled or has no enabled backends.
func (c *Catalog) BackendsForTier(tier Tier) []Backend {
	if !c.IsTierEnabled(tier) {
		return nil
	}
	var out []Backend
	for _, b := range c.backends {
		if b.Tier == tier && b.Enabled {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// IsTierEnabled reports whether a tier is administratively enabled.
func (c *Catalog) IsTierEnabled(tier Tier) bool {
	settings, ok := c.tiers[tier]
	return ok && settings.Enabled
}

// IsTierFree reports whether a tier carries no per-request cost.
func (c *Catalog) IsTierFree(tier Tier) bool {
	settings, ok := c.tiers[tier]
	return ok && settings.Free
}

// NextTier returns the next enabled tier above the given one.
func (c *Catalog) NextTier(tier Tier) (Tier, bool) {
	for t := tier + 1; t <= MaxTier; t++ {
		if c.IsTierEnabled(t) {
			return t, true
		}
	}
	return tier, false
}

// LowestFreeTier returns the lowest enabled free tier.
func (c *Catalog) LowestFreeTier() (Tier, bool) {
	for t := Tier0; t <= MaxTier; t++ {
		if c.IsTierEnabled(t) && c.IsTierFree(t) {
			return t, true
		}
	}
	return Tier0, false
}

// Backend returns a backend by id.
func (c *Catalog) Backend(id string) (Backend, bool) {
	for _, b := range c.backends {
		if b.ID == id {
			return b, true
		}
	}
	return Backend{}, false
}

// All returns every backend in the snapshot, in catalog order.
func (c *Catalog) All() []Backend {
	return append([]Backend(nil), c.backends...)
}

// Default returns the built-in catalog snapshot.
func Default() *Catalog {
	backends := []Backend{
		{
			ID:           "deepseek-chat",
			Provider:     "deepseek",
			Tier:         Tier0,
			Capabilities: CapGeneral | CapCode,
			Enabled:      true,
			Priority:     1,
			RelativeCost: 1,
		},
		{
			ID:           "gemini-2.0-flash",
			Provider:     "google",
			Tier:         Tier0,
			Capabilities: CapGeneral,
			Enabled:      true,
			Priority:     2,
			RelativeCost: 1,
		},
		{
			ID:            "gpt-5.2-instant",
			Provider:      "openai",
			Tier:          Tier1,
			Capabilities:  CapGeneral,
			PricePer1KIn:  0.00015,
			PricePer1KOut: 0.0006,
			ContextWindow: 128000,
			Enabled:       true,
			Priority:      1,
			RelativeCost:  2,
		},
		{
			ID:            "deepseek-coder",
			Provider:      "deepseek",
			Tier:          Tier1,
			Capabilities:  CapGeneral | CapCode,
			PricePer1KIn:  0.00014,
			PricePer1KOut: 0.00028,
			ContextWindow: 64000,
			Enabled:       true,
			Priority:      2,
			RelativeCost:  2,
		},
		{
			ID:            "deepseek-reasoner",
			Provider:      "deepseek",
			Tier:          Tier1,
			Capabilities:  CapGeneral | CapReasoning,
			PricePer1KIn:  0.00055,
			PricePer1KOut: 0.00219,
			ContextWindow: 64000,
			Enabled:       true,
			Priority:      3,
			RelativeCost:  3,
		},
		{
			ID:            "claude-sonnet-4-20250514",
			Provider:      "anthropic",
			Tier:          Tier2,
			Capabilities:  CapGeneral | CapCode | CapVision,
			PricePer1KIn:  0.003,
			PricePer1KOut: 0.015,
			ContextWindow: 200000,
			Enabled:       true,
			Priority:      1,
			RelativeCost:  5,
		},
		{
			ID:            "gpt-5.2-thinking",
			Provider:      "openai",
			Tier:          Tier2,
			Capabilities:  CapGeneral | CapReasoning,
			PricePer1KIn:  0.0025,
			PricePer1KOut: 0.01,
			ContextWindow: 128000,
			Enabled:       true,
			Priority:      2,
			RelativeCost:  5,
		},
		{
			ID:            "gpt-5.2-codex",
			Provider:      "openai",
			Tier:          Tier2,
			Capabilities:  CapGeneral | CapCode,
			PricePer1KIn:  0.0025,
			PricePer1KOut: 0.01,
			ContextWindow: 128000,
			Enabled:       true,
			Priority:      3,
			RelativeCost:  5,
		},
		{
			ID:            "claude-opus-4-20250514",
			Provider:      "anthropic",
			Tier:          Tier3,
			Capabilities:  CapGeneral | CapCode | CapReasoning | CapVision,
			PricePer1KIn:  0.015,
			PricePer1KOut: 0.075,
			ContextWindow: 200000,
			Enabled:       true,
			Priority:      1,
			RelativeCost:  10,
		},
		{
			ID:            "gpt-5.2-pro",
			Provider:      "openai",
			Tier:          Tier3,
			Capabilities:  CapGeneral | CapReasoning,
			PricePer1KIn:  0.01,
			PricePer1KOut: 0.04,
			ContextWindow: 128000,
			Enabled:       true,
			Priority:      2,
			RelativeCost:  9,
		},
	}
	return New(backends, nil)
}
