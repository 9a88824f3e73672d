package memoryservice

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loreforge/internal/embedding"
	"loreforge/internal/memmodel"
	"loreforge/internal/memstore"
	"loreforge/internal/retrieval"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	root := t.TempDir()
	st, err := memstore.New(filepath.Join(root, "memory"), filepath.Join(root, "memory_index"))
	require.NoError(t, err)
	embed := embedding.NewProvider(nil, nil, filepath.Join(root, "memory_index", "emb_cache.jsonl"))
	return NewService(st, embed, nil, nil)
}

func TestScopeKeySanitizesAndJoins(t *testing.T) {
	assert.Equal(t, "default__unknown", ScopeKey("", ""))
	assert.Equal(t, "hero_1__merchant", ScopeKey("hero 1", "merchant"))
}

func TestAppendShortRejectsEmptyText(t *testing.T) {
	svc := newTestService(t)
	ok, err := svc.AppendShort(context.Background(), "p1", "npc1", memmodel.RolePlayer, "   ", nil, 0.4, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendShortPersistsAndMergesTags(t *testing.T) {
	svc := newTestService(t)
	ok, err := svc.AppendShort(context.Background(), "p1", "npc1", memmodel.RolePlayer, "I promise to repay this debt", []string{"scene"}, 0.5, "")
	require.NoError(t, err)
	require.True(t, ok)

	mem, err := svc.LoadNPC("p1", "npc1")
	require.NoError(t, err)
	require.Len(t, mem.Short, 1)
	assert.Contains(t, mem.Short[0].Tags, "scene")
	assert.Contains(t, mem.Short[0].Tags, "player")
	assert.Contains(t, mem.Short[0].Tags, "promise")
	assert.Contains(t, mem.Short[0].Tags, "debt")
}

func TestAppendShortTriggersCompactionAndRebuild(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	npc, err := svc.LoadNPC("p1", "npc1")
	require.NoError(t, err)
	npc.Stats.ShortMax = 20
	npc.Stats.ChunkTargetTurns = 10
	require.NoError(t, svc.store.SaveNPC(npc))

	for i := 0; i < 21; i++ {
		_, err := svc.AppendShort(ctx, "p1", "npc1", memmodel.RolePlayer, "just talking about the weather", nil, 0.3, "")
		require.NoError(t, err)
	}

	mem, err := svc.LoadNPC("p1", "npc1")
	require.NoError(t, err)
	assert.NotEmpty(t, mem.Chunks)
}

func TestRememberDialogueTurnSharesTurnID(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.RememberDialogueTurn(context.Background(), "p1", "npc1", "hello there", "greetings traveler", "tavern"))

	mem, err := svc.LoadNPC("p1", "npc1")
	require.NoError(t, err)
	require.Len(t, mem.Short, 2)
	assert.Equal(t, mem.Short[0].TurnID, mem.Short[1].TurnID)
	assert.Equal(t, memmodel.RolePlayer, mem.Short[0].Role)
	assert.Equal(t, memmodel.RoleNPC, mem.Short[1].Role)
}

func TestRememberSystemEventDispatchesToPromiseAndMirrorsWorld(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.RememberSystemEvent(ctx, "p1", "npc1", "promise", "the blacksmith swore to finish the blade", 0.7))

	mem, err := svc.LoadNPC("p1", "npc1")
	require.NoError(t, err)
	require.NotEmpty(t, mem.Long.Promises)

	world, err := svc.LoadWorld()
	require.NoError(t, err)
	require.NotEmpty(t, world.Long.Events)
	assert.Equal(t, memmodel.ImpactMed, world.Long.Events[0].Impact)
}

func TestRememberSystemEventDeduplicatesByContentHash(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.RememberSystemEvent(ctx, "p1", "npc1", "fact", "the well in the square ran dry", 0.5))
	require.NoError(t, svc.RememberSystemEvent(ctx, "p1", "npc1", "fact", "the well in the square ran dry", 0.5))

	mem, err := svc.LoadNPC("p1", "npc1")
	require.NoError(t, err)
	assert.Len(t, mem.Long.Facts, 1)
}

func TestRebuildNPCIndexIsNoopWithoutContent(t *testing.T) {
	svc := newTestService(t)
	added, err := svc.RebuildNPCIndex(context.Background(), "p1", "npc1")
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestRetrieveContextWithoutEmbeddingsStillReturnsLexicalMatches(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.RememberSystemEvent(ctx, "p1", "npc1", "fact", "the blacksmith forges fine steel swords", 0.5))

	env, err := svc.RetrieveContext(ctx, "p1", "npc1", "tell me about the blacksmith", retrieval.ModeNPC, retrieval.Limits{Short: 5, Long: 5, Retrieved: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, env.Long)
}

func TestRetrieveContextBothModeLoadsNPCAndWorldConcurrently(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.RememberSystemEvent(ctx, "p1", "npc1", "fact", "the smithy sits by the eastern gate", 0.5))

	env, err := svc.RetrieveContext(ctx, "p1", "npc1", "smithy", retrieval.ModeBoth, retrieval.Limits{Short: 5, Long: 5, Retrieved: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, env.Long)
}

func TestAdminListPurgeAndScope(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.AppendShort(ctx, "p1", "npc1", memmodel.RolePlayer, "hello", nil, 0.4, "")
	require.NoError(t, err)
	_, err = svc.AppendShort(ctx, "p2", "npc2", memmodel.RolePlayer, "hello", nil, 0.4, "")
	require.NoError(t, err)

	ids, err := svc.ListScopedNPCIDs("p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1__npc1"}, ids)

	all, err := svc.ListScopedNPCIDs("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	purged, err := svc.PurgeShort("p1", "npc1")
	require.NoError(t, err)
	assert.True(t, purged)

	require.NoError(t, svc.PurgeScope("p1", "npc1"))
	ids, err = svc.ListScopedNPCIDs("p1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSingletonLazilyConstructsAndCanBeReplaced(t *testing.T) {
	Set(nil)
	SetBootFn(func() (*Service, error) { return newTestService(t), nil })
	defer Set(nil)

	s1, err := Get()
	require.NoError(t, err)
	s2, err := Get()
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	replacement := newTestService(t)
	Set(replacement)
	s3, err := Get()
	require.NoError(t, err)
	assert.Same(t, replacement, s3)
}
