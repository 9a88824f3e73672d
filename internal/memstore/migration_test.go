package memstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyPayload = `{
  "npc_id": "village_elder",
  "short": [{"ts": "2024-01-01T10:00:00Z", "role": "player", "text": "hello there", "importance": 0.4}],
  "facts": [{"ts": "2024-01-01T10:00:00Z", "text": "The elder distrusts the baron", "importance": 0.6}],
  "events": [{"ts": "2024-01-01T10:05:00Z", "text": "The bridge collapsed", "impact": "high"}],
  "affinity": 12.5,
  "summary": "The player met the elder and learned of the bridge collapse."
}`

func TestMigrateLegacySaveSubstitutesMissingContentHash(t *testing.T) {
	mem, err := MigrateLegacySave("village_elder", []byte(legacyPayload))
	require.NoError(t, err)

	require.Len(t, mem.Long.Facts, 1)
	assert.NotEmpty(t, mem.Long.Facts[0].ContentHash)

	require.Len(t, mem.Long.Events, 1)
	assert.Equal(t, "high", string(mem.Long.Events[0].Impact))

	require.Len(t, mem.Short, 1)
	assert.Equal(t, 12.5, mem.Long.Relationship.Affinity)
	assert.Contains(t, mem.Long.SummaryText, "bridge collapse")
}

func TestMigrateLegacySaveRejectsInvalidJSON(t *testing.T) {
	_, err := MigrateLegacySave("scope", []byte("not json"))
	assert.Error(t, err)
}

func TestRunBootstrapMigrationDiscoversFlatAndProfileSlots(t *testing.T) {
	savesRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(savesRoot, "slot_1.json"), []byte(legacyPayload), 0o644))

	profileDir := filepath.Join(savesRoot, "profiles", "wanderer")
	require.NoError(t, os.MkdirAll(profileDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(profileDir, "slot_1.json"), []byte(legacyPayload), 0o644))

	store := newTestStore(t)
	migrated, err := RunBootstrapMigration(store, savesRoot)
	require.NoError(t, err)
	assert.Equal(t, 2, migrated)

	ids, err := store.ListNPCIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestRunBootstrapMigrationSkipsAlreadyMigratedScope(t *testing.T) {
	savesRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(savesRoot, "slot_1.json"), []byte(legacyPayload), 0o644))

	store := newTestStore(t)
	first, err := RunBootstrapMigration(store, savesRoot)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := RunBootstrapMigration(store, savesRoot)
	require.NoError(t, err)
	assert.Equal(t, 0, second)
}

func TestRunBootstrapMigrationMissingSavesRootIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	migrated, err := RunBootstrapMigration(store, filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, 0, migrated)
}
