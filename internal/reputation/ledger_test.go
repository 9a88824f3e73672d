package reputation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFactionNameStripsPunctuationAndCollapsesSpace(t *testing.T) {
	assert.Equal(t, "Garde du Roi", NormalizeFactionName("  Garde   du <Roi>!! "))
	assert.Equal(t, "", NormalizeFactionName("***"))
}

func TestAdjustClampsDeltaAndScore(t *testing.T) {
	l := NewLedger()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	score := l.Adjust(now, "Marchands", 999, "test", "unit")
	assert.Equal(t, 25, score)

	score = l.Adjust(now, "Marchands", 999, "test", "unit")
	assert.Equal(t, 50, score)
	require.Len(t, l.Log, 2)
	assert.Equal(t, "Marchands", l.Log[0].Faction)
}

func TestAdjustZeroDeltaIsNoop(t *testing.T) {
	l := NewLedger()
	now := time.Now()
	l.Scores = map[string]int{"Marchands": 10}
	score := l.Adjust(now, "Marchands", 0, "", "")
	assert.Equal(t, 10, score)
	assert.Empty(t, l.Log)
}

func TestAdjustUnresolvableFactionIsNoop(t *testing.T) {
	l := NewLedger()
	score := l.Adjust(time.Now(), "***", 5, "", "")
	assert.Equal(t, 0, score)
	assert.Empty(t, l.Log)
}

func TestAdjustLogCapsAtMaxEntries(t *testing.T) {
	l := NewLedger()
	now := time.Now()
	for i := 0; i < LogMaxEntries+10; i++ {
		l.Adjust(now, "Marchands", 1, "", "")
	}
	assert.Len(t, l.Log, LogMaxEntries)
}

func TestTierThresholds(t *testing.T) {
	assert.Equal(t, "haine", Tier(-100))
	assert.Equal(t, "hostile", Tier(-60))
	assert.Equal(t, "mefiant", Tier(-20))
	assert.Equal(t, "neutre", Tier(20))
	assert.Equal(t, "respecte", Tier(55))
	assert.Equal(t, "honore", Tier(100))
}

func TestMerchantPriceMultiplierSteps(t *testing.T) {
	l := NewLedger()
	l.Scores["Marchands"] = -70
	assert.Equal(t, 1.35, l.MerchantPriceMultiplier())
	l.Scores["Marchands"] = -30
	assert.Equal(t, 1.15, l.MerchantPriceMultiplier())
	l.Scores["Marchands"] = 0
	assert.Equal(t, 1.0, l.MerchantPriceMultiplier())
	l.Scores["Marchands"] = 30
	assert.Equal(t, 0.93, l.MerchantPriceMultiplier())
	l.Scores["Marchands"] = 60
	assert.Equal(t, 0.85, l.MerchantPriceMultiplier())
	l.Scores["Marchands"] = 80
	assert.Equal(t, 0.78, l.MerchantPriceMultiplier())
}

func TestSceneAccessGatesOnFaction(t *testing.T) {
	l := NewLedger()
	l.Scores["Autorites"] = -50
	ok, reason := l.SceneAccess("palais_royal", "Palais")
	assert.False(t, ok)
	assert.NotEmpty(t, reason)

	l.Scores["Autorites"] = 0
	ok, reason = l.SceneAccess("palais_royal", "Palais")
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, _ = l.SceneAccess("taverne", "La Taverne Joyeuse")
	assert.True(t, ok)
}

func TestSummaryFormatsDescendingByMagnitude(t *testing.T) {
	l := NewLedger()
	l.Scores["Marchands"] = 5
	l.Scores["Autorites"] = -40
	summary := l.Summary(6)
	assert.Contains(t, summary, "Autorites:-40")
	assert.True(t, indexOf(summary, "Autorites") < indexOf(summary, "Marchands"))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestSummaryEmptyLedger(t *testing.T) {
	l := NewLedger()
	assert.Equal(t, "aucune", l.Summary(6))
}

func TestInferNPCFactionByRoleKeyword(t *testing.T) {
	assert.Equal(t, "Marchands", InferNPCFaction("Jos", "marchand ambulant", "", ""))
	assert.Equal(t, "Autorites", InferNPCFaction("Remy", "garde", "", ""))
	assert.Equal(t, "Habitants de Foret", InferNPCFaction("Anon", "", "", "Foret"))
	assert.Equal(t, "Habitants", InferNPCFaction("Anon", "", "", ""))
}

func TestApplyTradeReputationBuySmallVsLarge(t *testing.T) {
	l := NewLedger()
	rules := DefaultRules()
	now := time.Now()

	lines := ApplyTradeReputation(l, now, TradeContext{Action: "buy", Status: "ok", QtyDone: 1}, rules)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, l.Scores["Marchands"])

	lines = ApplyTradeReputation(l, now, TradeContext{Action: "sell", Status: "ok", QtyDone: 5}, rules)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, l.Scores["Marchands"])
}

func TestApplyTradeReputationIgnoresNonOkStatus(t *testing.T) {
	l := NewLedger()
	lines := ApplyTradeReputation(l, time.Now(), TradeContext{Action: "buy", Status: "failed"}, DefaultRules())
	assert.Empty(t, lines)
	assert.Empty(t, l.Scores)
}

func TestApplyTradeReputationCharityVsGenericGive(t *testing.T) {
	l := NewLedger()
	rules := DefaultRules()
	now := time.Now()

	lines := ApplyTradeReputation(l, now, TradeContext{Action: "give", Status: "ok", QtyDone: 1, TargetIsBeggar: true}, rules)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, l.Scores["Peuple"])

	lines = ApplyTradeReputation(l, now, TradeContext{Action: "give", Status: "ok", NPCRole: "garde"}, rules)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, l.Scores["Autorites"])
}

func TestApplyQuestCompletionReputationIsIdempotent(t *testing.T) {
	l := NewLedger()
	rules := DefaultRules()
	now := time.Now()
	quest := &Quest{Status: "completed", Objective: QuestObjective{Type: "collect_gold"}}

	lines := ApplyQuestCompletionReputation(l, now, quest, rules)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, l.Scores["Marchands"])
	assert.True(t, quest.ReputationClaimed)

	lines = ApplyQuestCompletionReputation(l, now, quest, rules)
	assert.Empty(t, lines)
	assert.Equal(t, 2, l.Scores["Marchands"])
}

func TestApplyQuestCompletionReputationNotCompletedIsNoop(t *testing.T) {
	l := NewLedger()
	quest := &Quest{Status: "active"}
	lines := ApplyQuestCompletionReputation(l, time.Now(), quest, DefaultRules())
	assert.Empty(t, lines)
	assert.False(t, quest.ReputationClaimed)
}

func TestApplyDungeonReputationEligibleVsIneligibleEvent(t *testing.T) {
	l := NewLedger()
	rules := DefaultRules()
	now := time.Now()

	lines := ApplyDungeonReputation(l, now, 3, "trap", rules)
	assert.Empty(t, lines)

	lines = ApplyDungeonReputation(l, now, 3, "monster", rules)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, l.Scores["Aventuriers"])

	lines = ApplyDungeonReputation(l, now, 12, "monster", rules)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, l.Scores["Aventuriers"])

	lines = ApplyDungeonReputation(l, now, 1, "boss", rules)
	require.Len(t, lines, 1)
	assert.Equal(t, 6, l.Scores["Aventuriers"])
}

func TestApplyQuestBranchReputationAppliesSelectedOptionOnce(t *testing.T) {
	l := NewLedger()
	now := time.Now()
	quest := &Quest{
		ID:     "q1",
		Status: "completed",
		Branching: &Branching{
			SelectedOptionID: "spare",
			Options: []BranchOption{
				{ID: "spare", Reputation: map[string]int{"Peuple": 5}},
				{ID: "kill", Reputation: map[string]int{"Peuple": -5}},
			},
		},
	}

	lines := ApplyQuestBranchReputation(l, now, quest)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, l.Scores["Peuple"])
	assert.True(t, quest.BranchReputationClaimed)

	lines = ApplyQuestBranchReputation(l, now, quest)
	assert.Empty(t, lines)
}

func TestApplyQuestBranchReputationWithoutBranchingMarksClaimedOnly(t *testing.T) {
	l := NewLedger()
	quest := &Quest{Status: "completed"}
	lines := ApplyQuestBranchReputation(l, time.Now(), quest)
	assert.Empty(t, lines)
	assert.True(t, quest.BranchReputationClaimed)
}

func TestLoadRulesFileFallsBackToDefaultsOnMissingFile(t *testing.T) {
	rules := LoadRulesFile("/nonexistent/reputation_rules.json")
	assert.Equal(t, DefaultRules(), rules)
}

func TestRuleStoreGetSetReload(t *testing.T) {
	store := NewRuleStore()
	assert.Equal(t, DefaultRules(), store.Get())

	custom := DefaultRules()
	custom.Trade.MerchantDeltaSmall = 4
	store.Set(custom)
	assert.Equal(t, 4, store.Get().Trade.MerchantDeltaSmall)

	reloaded := store.ReloadFrom("/nonexistent/reputation_rules.json")
	assert.Equal(t, DefaultRules(), reloaded)
	assert.Equal(t, DefaultRules(), store.Get())
}
