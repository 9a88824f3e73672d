package trade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTradeOpensSellingSession(t *testing.T) {
	e := New()
	s := e.StartTrade("Jos", ModeSell, false)
	assert.Equal(t, StatusSelecting, s.Status)
	assert.Equal(t, "Jos", s.NPCID)
	assert.Equal(t, ModeSell, s.Mode)
	assert.Equal(t, 1, s.TurnID)
}

func TestStartTradeResetsWhenNPCChanges(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeSell, false)
	e.AddToCart("potion", "Potion", 2, 10)
	s := e.StartTrade("Remy", ModeBuy, false)
	assert.Equal(t, "Remy", s.NPCID)
	assert.Empty(t, s.Cart)
}

func TestRunActionGuardDetectsDuplicate(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeSell, false)
	_, dup := e.RunActionGuard("je vends epee")
	assert.False(t, dup)
	_, dup = e.RunActionGuard("je vends epee")
	assert.True(t, dup)
}

func TestRunActionGuardAllowsDifferentTextAfterDuplicate(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeSell, false)
	e.RunActionGuard("je vends epee")
	_, dup := e.RunActionGuard("je vends potion")
	assert.False(t, dup)
}

func TestProposeBundleOptionsAsksWhenAmbiguous(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeSell, false)
	q := e.ProposeBundleOptions(Intent{ItemID: "potion", MaxQty: 5}, "Potion")
	require.NotNil(t, q)
	assert.Equal(t, StatusSelecting, e.ExportSession().Status)
}

func TestProposeBundleOptionsSkipsWhenExplicitQty(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeSell, false)
	qty := 3
	q := e.ProposeBundleOptions(Intent{ItemID: "potion", MaxQty: 5, Qty: &qty}, "Potion")
	assert.Nil(t, q)
}

func TestApplyQuantityChoiceSellAllUsesMaxQty(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeSell, false)
	s, info := e.ApplyQuantityChoice("sell_all", 0, 7, "potion", "Potion", 10)
	assert.Equal(t, StatusConfirming, s.Status)
	require.Len(t, s.Cart, 1)
	assert.Equal(t, 7, s.Cart[0].Qty)
	assert.NotEmpty(t, info)
}

func TestApplyQuantityChoiceSetQtyClamped(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeSell, false)
	s, _ := e.ApplyQuantityChoice("set_qty", 99, 5, "potion", "Potion", 10)
	assert.Equal(t, 5, s.Cart[0].Qty)
}

func TestAbortTradeClearsCart(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeSell, false)
	e.AddToCart("potion", "Potion", 1, 10)
	s := e.AbortTrade()
	assert.Equal(t, StatusAborted, s.Status)
	assert.Empty(t, s.Cart)
}

func TestExecuteTradeSellCreditsGoldAndDecrementsInventory(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeSell, false)
	e.AddToCart("potion", "Potion", 2, 10)
	e.ConfirmTrade()

	inv := Inventory{Carried: []Slot{{ItemID: "potion", Qty: 3}}}
	result := e.ExecuteTrade(ExecuteContext{
		Gold:      50,
		Inventory: &inv,
		ItemDefs:  map[string]ItemDef{"potion": {ID: "potion", Name: "Potion", Value: 10, StackMax: 10}},
	})

	require.True(t, result.OK)
	assert.Equal(t, 70, result.GoldAfter)
	assert.Equal(t, statusOK, result.Context.Status)
	assert.Equal(t, 1, inv.Total("potion"))
	assert.Equal(t, StatusDone, result.Session.Status)
}

func TestExecuteTradeSellInsufficientInventoryRollsBack(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeSell, false)
	e.AddToCart("potion", "Potion", 5, 10)
	e.ConfirmTrade()

	inv := Inventory{Carried: []Slot{{ItemID: "potion", Qty: 1}}}
	result := e.ExecuteTrade(ExecuteContext{
		Gold:      50,
		Inventory: &inv,
		ItemDefs:  map[string]ItemDef{"potion": {ID: "potion", Value: 10}},
	})

	assert.False(t, result.OK)
	assert.Equal(t, statusInsufficientStock, result.Context.Status)
	assert.Equal(t, 1, inv.Total("potion"))
	assert.Equal(t, 50, result.GoldAfter)
}

func TestExecuteTradeBuyDebitsGoldAndAllocatesSlots(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeBuy, false)
	e.AddToCart("sword", "Epee", 1, 30)
	e.ConfirmTrade()

	inv := Inventory{}
	result := e.ExecuteTrade(ExecuteContext{
		Gold:      100,
		Inventory: &inv,
		ItemDefs:  map[string]ItemDef{"sword": {ID: "sword", Value: 30, StackMax: 1}},
	})

	require.True(t, result.OK)
	assert.Equal(t, 70, result.GoldAfter)
	assert.Equal(t, 1, inv.Total("sword"))
}

func TestExecuteTradeBuyInsufficientGoldRollsBack(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeBuy, false)
	e.AddToCart("sword", "Epee", 1, 30)
	e.ConfirmTrade()

	inv := Inventory{}
	result := e.ExecuteTrade(ExecuteContext{
		Gold:      10,
		Inventory: &inv,
		ItemDefs:  map[string]ItemDef{"sword": {ID: "sword", Value: 30}},
	})

	assert.False(t, result.OK)
	assert.Equal(t, statusInsufficientFunds, result.Context.Status)
	assert.Equal(t, 0, inv.Total("sword"))
	assert.Equal(t, 10, result.GoldAfter)
}

func TestExecuteTradeBuyFullInventoryRollsBack(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeBuy, false)
	e.AddToCart("sword", "Epee", 1, 30)
	e.ConfirmTrade()

	inv := Inventory{Carried: []Slot{{ItemID: "shield", Qty: 1}}}
	result := e.ExecuteTrade(ExecuteContext{
		Gold:            100,
		Inventory:       &inv,
		ItemDefs:        map[string]ItemDef{"sword": {ID: "sword", Value: 30, StackMax: 1}},
		CarriedCapacity: 1,
	})

	assert.False(t, result.OK)
	assert.Equal(t, statusInventoryFull, result.Context.Status)
	assert.Equal(t, 0, inv.Total("sword"))
	assert.Equal(t, 1, inv.Total("shield"))
	assert.Equal(t, 100, result.GoldAfter)
}

func TestExecuteTradeEmptyCartReportsCartEmptyNotInventoryFull(t *testing.T) {
	e := New()
	e.StartTrade("Jos", ModeSell, false)
	e.ConfirmTrade()

	inv := Inventory{}
	result := e.ExecuteTrade(ExecuteContext{Gold: 10, Inventory: &inv})

	assert.False(t, result.OK)
	assert.Equal(t, statusCartEmpty, result.Context.Status)
}

func TestExecuteTradeSecretCharityCandidateWhenBelowCatalogValue(t *testing.T) {
	e := New()
	e.StartTrade("Beggar", ModeSell, false)
	e.AddToCart("bread", "Pain", 1, 1)
	e.ConfirmTrade()

	inv := Inventory{Carried: []Slot{{ItemID: "bread", Qty: 1}}}
	result := e.ExecuteTrade(ExecuteContext{
		Gold:        0,
		Inventory:   &inv,
		ItemDefs:    map[string]ItemDef{"bread": {ID: "bread", Value: 5}},
		NPCIsBeggar: true,
	})

	require.True(t, result.OK)
	assert.True(t, result.Context.SecretCharityCandidate)
}

func TestPriceForItemAppliesMultiplier(t *testing.T) {
	assert.Equal(t, 12, PriceForItem(ItemDef{Value: 10}, 1.15))
	assert.Equal(t, 10, PriceForItem(ItemDef{Value: 10}, 1.0))
}

func TestInventoryRemoveNearestLastFirstAcrossCarriedThenStorage(t *testing.T) {
	inv := Inventory{
		Carried: []Slot{{ItemID: "rope", Qty: 2}},
		Storage: []Slot{{ItemID: "rope", Qty: 3}},
	}
	ok := inv.RemoveNearestLastFirst("rope", 4)
	assert.True(t, ok)
	assert.Equal(t, 1, inv.Total("rope"))
}

func TestInventoryAddMergeThenEmptyRespectsStackMax(t *testing.T) {
	inv := Inventory{Carried: []Slot{{ItemID: "arrow", Qty: 8}}}
	ok := inv.AddMergeThenEmpty("arrow", 5, 10, 20)
	assert.True(t, ok)
	assert.Equal(t, 13, inv.Total("arrow"))
	assert.Len(t, inv.Carried, 2)
}

func TestInventoryAddMergeThenEmptyReturnsFalseWhenCapacityExhausted(t *testing.T) {
	inv := Inventory{Carried: []Slot{{ItemID: "arrow", Qty: 10}}}
	ok := inv.AddMergeThenEmpty("rock", 1, 10, 1)
	assert.False(t, ok)
	assert.Equal(t, 0, inv.Total("rock"))
	assert.Len(t, inv.Carried, 1)
}

func TestMatchItemByQueryExactSubstring(t *testing.T) {
	defs := map[string]ItemDef{"sword_apprentice": {ID: "sword_apprentice", Name: "Epee d'apprenti"}}
	def, ok := MatchItemByQuery("epee", defs)
	assert.True(t, ok)
	assert.Equal(t, "sword_apprentice", def.ID)
}

func TestMatchItemByQueryNoMatchBelowThreshold(t *testing.T) {
	defs := map[string]ItemDef{"torch": {ID: "torch", Name: "Torche"}}
	_, ok := MatchItemByQuery("xyzzy completely unrelated", defs)
	assert.False(t, ok)
}

func TestNormalizeCapsTranscriptRing(t *testing.T) {
	raw := Session{Status: StatusDone}
	for i := 0; i < 15; i++ {
		raw.Transcript = append(raw.Transcript, "line")
	}
	s := Normalize(raw)
	assert.Len(t, s.Transcript, 10)
}

func TestNormalizeIdleClearsCart(t *testing.T) {
	raw := Session{Status: StatusIdle, Cart: []CartLine{{ItemID: "x", Qty: 1}}}
	s := Normalize(raw)
	assert.Empty(t, s.Cart)
}
