package loreconfig

import (
	"strings"

	"loreforge/internal/travel"
)

// ApplyTravelTuning pushes the config's base speed and event-weight
// overrides into a travel.Engine right after construction.
func (c *Config) ApplyTravelTuning(e *travel.Engine) {
	e.SetBaseSpeed(c.Travel.BaseSpeed)
	if len(c.Travel.EventWeights) == 0 {
		return
	}
	overrides := make(map[travel.EventType]int, len(c.Travel.EventWeights))
	for key, weight := range c.Travel.EventWeights {
		overrides[travel.EventType(strings.ToLower(strings.TrimSpace(key)))] = weight
	}
	e.SetEventWeightOverrides(overrides)
}

// DefaultStackMax returns the configured trade stack-max fallback,
// defaulting to 99 when unset.
func (c *Config) DefaultStackMax() int {
	if c.Trade.DefaultStackMax > 0 {
		return c.Trade.DefaultStackMax
	}
	return 99
}

// CarriedCapacity returns the configured cap on Inventory.Carried slots,
// defaulting to 20 when unset.
func (c *Config) CarriedCapacity() int {
	if c.Trade.CarriedCapacity > 0 {
		return c.Trade.CarriedCapacity
	}
	return 20
}
