package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loreforge/internal/loreconfig"
)

func withTestWorkspace(t *testing.T) {
	t.Helper()
	ws := t.TempDir()
	workspace = ws
	cfg = loreconfig.DefaultConfig()
	t.Cleanup(func() {
		workspace = ""
		cfg = nil
	})
}

func TestTravelStartThenStatusRoundTrips(t *testing.T) {
	withTestWorkspace(t)

	require.NoError(t, travelStartCmd.RunE(travelStartCmd, []string{"village", "ruins", "4", "20"}))

	state := loadTravelState()
	assert.Equal(t, "village", state.FromLocationID)
	assert.Equal(t, "ruins", state.ToLocationID)
	assert.Equal(t, "traveling", string(state.Status))
}

func TestTravelTickAdvancesPersistedState(t *testing.T) {
	withTestWorkspace(t)

	require.NoError(t, travelStartCmd.RunE(travelStartCmd, []string{"village", "ruins", "4", "20"}))
	before := loadTravelState()

	require.NoError(t, travelTickCmd.RunE(travelTickCmd, []string{"continue"}))
	after := loadTravelState()

	assert.GreaterOrEqual(t, after.Progress, before.Progress)
}

func TestTravelStatusDefaultsToIdleWhenNoStateSaved(t *testing.T) {
	withTestWorkspace(t)

	state := loadTravelState()
	assert.Equal(t, "idle", string(state.Status))
}
