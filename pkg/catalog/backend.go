package catalog

import "strings"

// Capability is a flag set describing what a backend can do.
type Capability uint8

const (
	CapGeneral Capability = 1 << iota
	CapCode
	CapReasoning
	CapVision
)

// Has reports whether all flags in want are present.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

func (c Capability) String() string {
	var parts []string
	if c.Has(CapGeneral) {
		parts = append(parts, "general")
	}
	if c.Has(CapCode) {
		parts = append(parts, "code")
	}
	if c.Has(CapReasoning) {
		parts = append(parts, "reasoning")
	}
	if c.Has(CapVision) {
		parts = append(parts, "vision")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// ParseCapabilities converts capability names into a flag set. Unknown
// names are ignored.
func ParseCapabilities(names []string) Capability {
	var c Capability
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "general":
			c |= CapGeneral
		case "code":
			c |= CapCode
		case "reasoning":
			c |= CapReasoning
		case "vision":
			c |= CapVision
		}
	}
	return c
}

// Backend describes one invocable model entry in the catalog.
// Immutable for the duration of a routing decision; administrative
// enable/disable produces a new catalog snapshot.
type Backend struct {
	ID            string     `json:"id" yaml:"id"`
	Provider      string     `json:"provider" yaml:"provider"`
	Tier          Tier       `json:"tier" yaml:"tier"`
	Capabilities  Capability `json:"-" yaml:"-"`
	PricePer1KIn  float64    `json:"price_per_1k_in,omitempty" yaml:"price_per_1k_in,omitempty"`
	PricePer1KOut float64    `json:"price_per_1k_out,omitempty" yaml:"price_per_1k_out,omitempty"`
	ContextWindow int        `json:"context_window,omitempty" yaml:"context_window,omitempty"`
	Enabled       bool       `json:"enabled" yaml:"enabled"`
	Priority      int        `json:"priority" yaml:"priority"`
	RelativeCost  float64    `json:"relative_cost" yaml:"relative_cost"`
}

// backendYAML is the on-disk shape; capabilities are listed by name.
type backendYAML struct {
	ID            string   `yaml:"id"`
	Provider      string   `yaml:"provider"`
	Tier          Tier     `yaml:"tier"`
	Capabilities  []string `yaml:"capabilities"`
	PricePer1KIn  float64  `yaml:"price_per_1k_in"`
	PricePer1KOut float64  `yaml:"price_per_1k_out"`
	ContextWindow int      `yaml:"context_window"`
	Enabled       *bool    `yaml:"enabled"`
	Priority      int      `yaml:"priority"`
	RelativeCost  float64  `yaml:"relative_cost"`
}

func (b backendYAML) toBackend() Backend {
	enabled := true
	if b.Enabled != nil {
		enabled = *b.Enabled
	}
	return Backend{
		ID:            b.ID,
		Provider:      b.Provider,
		Tier:          b.Tier,
		Capabilities:  ParseCapabilities(b.Capabilities),
		PricePer1KIn:  b.PricePer1KIn,
		PricePer1KOut: b.PricePer1KOut,
		ContextWindow: b.ContextWindow,
		Enabled:       enabled,
		Priority:      b.Priority,
		RelativeCost:  b.RelativeCost,
	}
}
