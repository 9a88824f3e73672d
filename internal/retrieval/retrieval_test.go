package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loreforge/internal/memmodel"
)

func mustFact(t *testing.T, ts time.Time, text string, importance float64) memmodel.Fact {
	t.Helper()
	f, ok := memmodel.NewFact(ts, text, nil, importance, 0.8)
	require.True(t, ok)
	return f
}

func mustTurn(t *testing.T, ts time.Time, text string) memmodel.ShortTurn {
	t.Helper()
	turn, ok := memmodel.NewShortTurn(ts, memmodel.RolePlayer, text, nil, 0.3, "")
	require.True(t, ok)
	return turn
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	tokens := tokenize("the Ox is at 42 gold, it's an ok deal")
	_, hasOx := tokens["ox"]
	_, hasOk := tokens["ok"]
	_, hasGold := tokens["gold"]
	assert.False(t, hasOx)
	assert.False(t, hasOk)
	assert.True(t, hasGold)
}

func TestJaccardOverlap(t *testing.T) {
	a := tokenize("the sword was stolen from the blacksmith")
	b := tokenize("who stole the sword")
	score := jaccard(a, b)
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestRecencyScoreDecaysWithAge(t *testing.T) {
	now := time.Now()
	fresh := recencyScore(now, now)
	old := recencyScore(now.Add(-240*time.Hour), now)
	assert.InDelta(t, 1.0, fresh, 1e-9)
	assert.Less(t, old, fresh)
	assert.InDelta(t, 1.0/2.718281828, old, 0.01)
}

func TestRetrieveRanksFactsByRelevance(t *testing.T) {
	now := time.Now()
	mem := memmodel.NewNPCMemory("scope")
	mem.Long.Facts = append(mem.Long.Facts,
		mustFact(t, now, "the blacksmith forges steel swords", 0.6),
		mustFact(t, now, "the weather has been rainy lately", 0.6),
	)

	env := Retrieve(Query{
		NPC:    mem,
		Text:   "tell me about the blacksmith and swords",
		Mode:   ModeNPC,
		Limits: Limits{Short: 5, Long: 5, Retrieved: 5},
		Now:    now,
	})

	require.NotEmpty(t, env.Long)
	assert.Contains(t, env.Long[0], "blacksmith")
}

func TestRetrieveShortKeepsNewestWithinLimit(t *testing.T) {
	now := time.Now()
	mem := memmodel.NewNPCMemory("scope")
	for i := 0; i < 5; i++ {
		mem.Short = append(mem.Short, mustTurn(t, now.Add(time.Duration(i)*time.Minute), "turn"))
	}

	env := Retrieve(Query{NPC: mem, Mode: ModeNPC, Limits: Limits{Short: 2}, Now: now})
	assert.Len(t, env.Short, 2)
}

func TestRetrieveUsesVectorHitsWhenProvided(t *testing.T) {
	mem := memmodel.NewNPCMemory("scope")
	env := Retrieve(Query{
		NPC:  mem,
		Text: "dragon attack",
		Mode: ModeNPC,
		Hits: []VectorHit{
			{RecordID: "a", Text: "the dragon attacked the village", Score: 0.9},
			{RecordID: "b", Text: "completely unrelated gossip", Score: 0.1},
		},
		Limits: Limits{Retrieved: 5},
	})

	require.Len(t, env.Retrieved, 2)
	assert.Equal(t, "the dragon attacked the village", env.Retrieved[0])
}

func TestRetrieveFallsBackToChunksWithoutVectorHits(t *testing.T) {
	now := time.Now()
	mem := memmodel.NewNPCMemory("scope")
	chunk, ok := memmodel.NewChunk(now, now, []string{"t1"}, "the player fought a bandit ambush", []string{"combat"}, 0.6)
	require.True(t, ok)
	mem.AddChunk(chunk)

	env := Retrieve(Query{NPC: mem, Text: "bandit ambush", Mode: ModeNPC, Limits: Limits{Retrieved: 5}, Now: now})
	require.NotEmpty(t, env.Retrieved)
	assert.Contains(t, env.Retrieved[0], "bandit ambush")
}

func TestRetrieveCombinedDedupesAcrossSections(t *testing.T) {
	now := time.Now()
	mem := memmodel.NewNPCMemory("scope")
	mem.Short = append(mem.Short, mustTurn(t, now, "the same exact line"))
	mem.Long.Facts = append(mem.Long.Facts, mustFact(t, now, "the same exact line", 0.5))

	env := Retrieve(Query{NPC: mem, Text: "same exact line", Mode: ModeNPC, Limits: Limits{Short: 5, Long: 5, Retrieved: 5}, Now: now})

	seen := map[string]int{}
	for _, l := range env.Combined {
		seen[l]++
	}
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestRetrieveBothModeCombinesNPCAndWorld(t *testing.T) {
	now := time.Now()
	npc := memmodel.NewNPCMemory("scope")
	npc.Long.Facts = append(npc.Long.Facts, mustFact(t, now, "npc knows about the siege", 0.5))
	world := memmodel.NewWorldMemory()
	world.Long.Facts = append(world.Long.Facts, mustFact(t, now, "the siege of the capital began", 0.5))

	env := Retrieve(Query{NPC: npc, World: world, Text: "siege", Mode: ModeBoth, Limits: Limits{Long: 5}, Now: now})
	assert.Len(t, env.Long, 2)
}

func TestDefaultRemapClampsSignedCosine(t *testing.T) {
	assert.InDelta(t, 1.0, defaultRemap(1.0), 1e-9)
	assert.InDelta(t, 0.0, defaultRemap(-1.0), 1e-9)
	assert.InDelta(t, 0.5, defaultRemap(0.0), 1e-9)
}
