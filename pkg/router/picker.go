package router

import (
	"github.com/zen-systems/tiergate/pkg/catalog"
	"github.com/zen-systems/tiergate/pkg/cost"
)

// BackendPicker selects the cheapest capable backend within a tier,
// falling back to the lowest free tier when the requested tier has
// nothing to offer.
type BackendPicker struct {
	catalog *catalog.Catalog
}

// NewBackendPicker creates a picker over a catalog snapshot.
func NewBackendPicker(cat *catalog.Catalog) *BackendPicker {
	return &BackendPicker{catalog: cat}
}

// requiredCapability maps a task type to the capability a backend must
// advertise. Anything unrecognized requires general capability.
func requiredCapability(taskType string) catalog.Capability {
	switch taskType {
	case "code":
		return catalog.CapCode
	case "reasoning":
		return catalog.CapReasoning
	case "vision":
		return catalog.CapVision
	default:
		return catalog.CapGeneral
	}
}

// Pick returns the cheapest backend in the tier matching the task's
// capability. Fallback order: any backend in the tier, then the lowest
// free tier under the same filter, then any backend there. Only a fully
// exhausted catalog fails.
func (p *BackendPicker) Pick(tier catalog.Tier, taskType string) (catalog.Backend, error) {
	capability := requiredCapability(taskType)

	candidates := p.candidates(tier, capability)
	if len(candidates) == 0 {
		if freeTier, ok := p.catalog.LowestFreeTier(); ok && freeTier != tier {
			candidates = p.candidates(freeTier, capability)
		}
	}
	if len(candidates) == 0 {
		return catalog.Backend{}, &RouteError{
			Kind:   ErrNoBackendAvailable,
			Tier:   tier,
			Reason: "no enabled backend in tier or free fallback",
		}
	}

	best, _ := cost.Cheapest(candidates)
	return best, nil
}

// candidates filters a tier's backends by capability, widening to the
// whole tier when the filter empties it.
func (p *BackendPicker) candidates(tier catalog.Tier, capability catalog.Capability) []catalog.Backend {
	backends := p.catalog.BackendsForTier(tier)
	var filtered []catalog.Backend
	for _, b := range backends {
		if b.Capabilities.Has(capability) {
			filtered = append(filtered, b)
		}
	}
	if len(filtered) == 0 {
		return backends
	}
	return filtered
}
