package catalog

import (
	"encoding/json"
	"fmt"
)

// Tier is an ordered cost/quality bucket of backends. Lower tiers are
// cheaper; Tier0 is the free tier.
type Tier int

const (
	Tier0 Tier = iota // free
	Tier1             // budget paid
	Tier2             // standard paid
	Tier3             // premium
)

var tierNames = [...]string{"T0", "T1", "T2", "T3"}

// MaxTier is the highest defined tier.
const MaxTier = Tier3

func (t Tier) String() string {
	if t >= 0 && int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "UNKNOWN"
}

// Valid reports whether the tier is a defined value.
func (t Tier) Valid() bool {
	return t >= Tier0 && t <= MaxTier
}

// ParseTier converts a tier name ("T0".."T3") to a Tier.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if s == name {
			return Tier(i), nil
		}
	}
	return Tier0, fmt.Errorf("unknown tier %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t Tier) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Tier) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
