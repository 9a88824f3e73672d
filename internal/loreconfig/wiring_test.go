package loreconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"loreforge/internal/travel"
)

func TestApplyTravelTuningWiresBaseSpeedAndWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Travel.BaseSpeed = 18
	cfg.Travel.EventWeights = map[string]int{"Ambush": 7}

	seed := int64(3)
	e := travel.New(&seed)
	cfg.ApplyTravelTuning(e)
	plain := travel.New(&seed)

	// Same seed and same first tick: only the base speed differs (18 vs 12).
	e.StartTravel("a", "b", travel.StartOptions{TotalDistance: 500})
	plain.StartTravel("a", "b", travel.StartOptions{TotalDistance: 500})
	tuned, _ := e.TickTravel(travel.World{TimeOfDay: "morning"}, travel.Player{}, travel.ActionContinue)
	untuned, _ := plain.TickTravel(travel.World{TimeOfDay: "morning"}, travel.Player{}, travel.ActionContinue)
	assert.Equal(t, untuned.Progress+6, tuned.Progress)
}

func TestDefaultStackMaxUsesConfiguredValue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trade.DefaultStackMax = 50
	assert.Equal(t, 50, cfg.DefaultStackMax())
}

func TestCarriedCapacityFallsBackWhenUnset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trade.CarriedCapacity = 0
	assert.Equal(t, 20, cfg.CarriedCapacity())
}

func TestCarriedCapacityUsesConfiguredValue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trade.CarriedCapacity = 40
	assert.Equal(t, 40, cfg.CarriedCapacity())
}
