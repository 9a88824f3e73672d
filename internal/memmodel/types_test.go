package memmodel

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShortTurnValidates(t *testing.T) {
	turn, ok := NewShortTurn(time.Now(), Role("bogus"), "  hi there  ", []string{"Quest", "quest"}, 5, "")
	require.True(t, ok)
	assert.Equal(t, RolePlayer, turn.Role)
	assert.Equal(t, "hi there", turn.Text)
	assert.Equal(t, []string{"quest"}, turn.Tags)
	assert.Equal(t, 1.0, turn.Importance)
	assert.NotEmpty(t, turn.TurnID)
}

func TestNewShortTurnRejectsEmptyText(t *testing.T) {
	_, ok := NewShortTurn(time.Now(), RolePlayer, "   ", nil, 0, "")
	assert.False(t, ok)
}

func TestNewFactClampsConfidence(t *testing.T) {
	f, ok := NewFact(time.Now(), "the baron owns the mill", nil, 2, -1)
	require.True(t, ok)
	assert.Equal(t, 1.0, f.Importance)
	assert.Equal(t, 0.0, f.Confidence)
	assert.NotEmpty(t, f.ContentHash)
}

func TestNewEventFallsBackOnUnknownImpact(t *testing.T) {
	e, ok := NewEvent(time.Now(), "the bridge collapsed", nil, 0.5, Impact("catastrophic"))
	require.True(t, ok)
	assert.Equal(t, ImpactLow, e.Impact)
}

func TestNewPromiseFallsBackOnUnknownStatus(t *testing.T) {
	p, ok := NewPromise(time.Now(), "bring back the sword", nil, 0.5, PromiseStatus("nonsense"))
	require.True(t, ok)
	assert.Equal(t, PromiseOpen, p.Status)
}

func TestNewDebtFallsBackOnUnknownStatus(t *testing.T) {
	d, ok := NewDebt(time.Now(), "owes 50 gold", nil, 0.5, DebtStatus("nonsense"))
	require.True(t, ok)
	assert.Equal(t, DebtOpen, d.Status)
}

func TestNewChunkRejectsEmptySummary(t *testing.T) {
	_, ok := NewChunk(time.Now(), time.Now(), nil, "   ", nil, 0.5)
	assert.False(t, ok)
}

func TestNewChunkDefaultsTagsAndClampsImportance(t *testing.T) {
	c, ok := NewChunk(time.Now(), time.Now(), []string{"t1", "t1"}, "met at the tavern", nil, 0)
	require.True(t, ok)
	assert.Equal(t, []string{"general"}, c.Tags)
	assert.Equal(t, 0.15, c.Importance)
	assert.Equal(t, []string{"t1"}, c.ContributingIDs)
}

func TestRelationshipAdjustAffinityClamps(t *testing.T) {
	r := Relationship{Affinity: 95}
	r.AdjustAffinity(50)
	assert.Equal(t, 100.0, r.Affinity)
	r.AdjustAffinity(-500)
	assert.Equal(t, -100.0, r.Affinity)
}

func TestRelationshipAddNoteTruncatesToNewest(t *testing.T) {
	r := Relationship{}
	base := time.Now()
	for i := 0; i < MaxRelationshipNotes+10; i++ {
		r.AddNote(base.Add(time.Duration(i)*time.Minute), "note")
	}
	assert.Len(t, r.Notes, MaxRelationshipNotes)
}

func TestLongMemoryAddFactDedupesByContentHash(t *testing.T) {
	lm := &LongMemory{}
	f1, _ := NewFact(time.Now(), "the well is dry", nil, 0.4, 0.9)
	f2, _ := NewFact(time.Now(), "The Well Is Dry", nil, 0.4, 0.9)

	assert.True(t, lm.AddFact(f1))
	assert.False(t, lm.AddFact(f2))
	assert.Len(t, lm.Facts, 1)
}

func TestLongMemoryAddEventTruncatesKeepingNewest(t *testing.T) {
	lm := &LongMemory{}
	for i := 0; i < MaxEvents+5; i++ {
		e, ok := NewEvent(time.Now(), uniqueText("event", i), nil, 0.3, ImpactLow)
		require.True(t, ok)
		lm.AddEvent(e)
	}
	assert.Len(t, lm.Events, MaxEvents)
	assert.Equal(t, uniqueText("event", MaxEvents+4), lm.Events[len(lm.Events)-1].Text)
}

func uniqueText(prefix string, i int) string {
	return prefix + "-" + strconv.Itoa(i)
}

func TestStatsNormalizeClampsRanges(t *testing.T) {
	s := Stats{ShortMax: 5, ChunkTargetTurns: 500}
	s.Normalize()
	assert.Equal(t, 20, s.ShortMax)
	assert.Equal(t, 120, s.ChunkTargetTurns)
}

func TestNewNPCMemoryDefaults(t *testing.T) {
	m := NewNPCMemory("profile_one__village_elder")
	assert.Equal(t, SchemaVersion, m.SchemaVersion)
	assert.Equal(t, 80, m.Stats.ShortMax)
	assert.Equal(t, 20, m.Stats.ChunkTargetTurns)
}

func TestNPCMemoryAddChunkDedupesAndCaps(t *testing.T) {
	m := NewNPCMemory("scope")
	c1, _ := NewChunk(time.Now(), time.Now(), nil, "first chunk text", nil, 0.5)
	c2 := c1
	assert.True(t, m.AddChunk(c1))
	assert.False(t, m.AddChunk(c2))
}

func TestWorldMemoryAddDiscoveredLocationDedupes(t *testing.T) {
	w := NewWorldMemory()
	assert.True(t, w.AddDiscoveredLocation("Old Mill"))
	assert.False(t, w.AddDiscoveredLocation("Old Mill"))
	assert.Len(t, w.DiscoveredLocations, 1)
}
