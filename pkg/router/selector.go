package router

import (
	"fmt"

	"github.com/zen-systems/tiergate/pkg/catalog"
	"github.com/zen-systems/tiergate/pkg/policy"
)

// Quality preference buckets. Callers may also pass the
// speed/quality/cost vocabulary; normalizeQuality folds it in.
const (
	QualityNormal   = "normal"
	QualityHigh     = "high"
	QualityCritical = "critical"
)

func normalizeQuality(q string) string {
	switch q {
	case QualityCritical:
		return QualityCritical
	case QualityHigh, "quality":
		return QualityHigh
	default:
		// speed, cost, normal, empty
		return QualityNormal
	}
}

// TierSelector combines policy output, classified complexity, and the
// caller's quality preference into the initial tier. The preferred-tier
// hard override is handled by the router before selection runs.
type TierSelector struct {
	catalog     *catalog.Catalog
	defaultTier catalog.Tier
}

// NewTierSelector creates a selector over a catalog snapshot.
func NewTierSelector(cat *catalog.Catalog, defaultTier catalog.Tier) *TierSelector {
	return &TierSelector{catalog: cat, defaultTier: defaultTier}
}

// Select resolves the initial tier. A deny action aborts the whole
// route with ErrPolicyDenied.
func (s *TierSelector) Select(match policy.Match, complexity Complexity, quality string) (catalog.Tier, error) {
	if match.Action != nil {
		switch match.Action.Type {
		case policy.ActionDeny:
			return 0, &RouteError{
				Kind:   ErrPolicyDenied,
				Reason: fmt.Sprintf("denied by policy %s rule %s", match.Policy, match.Rule),
			}
		case policy.ActionRouteTo, policy.ActionDowngrade:
			return match.Action.TargetTier, nil
		case policy.ActionEscalate:
			if next, ok := s.catalog.NextTier(s.defaultTier); ok {
				return next, nil
			}
			return s.defaultTier, nil
		case policy.ActionAllow:
			// Explicit allow still follows the quality defaults below.
		}
	}

	switch {
	case normalizeQuality(quality) == QualityCritical:
		if catalog.MaxTier > 0 {
			return catalog.MaxTier - 1, nil
		}
		return catalog.MaxTier, nil
	case complexity == ComplexityHigh && normalizeQuality(quality) == QualityHigh:
		if next, ok := s.catalog.NextTier(s.defaultTier); ok {
			return next, nil
		}
		return s.defaultTier, nil
	default:
		return s.defaultTier, nil
	}
}
