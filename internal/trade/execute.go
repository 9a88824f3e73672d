package trade

import (
	"strconv"

	"loreforge/internal/reputation"
)

// ExecuteContext carries everything ExecuteTrade needs that lives outside
// the session: the player's gold and inventory, the item catalog, the
// merchant price multiplier (reputation-derived), and NPC facts used to
// flag a charity sale.
type ExecuteContext struct {
	Gold            int
	Inventory       *Inventory
	ItemDefs        map[string]ItemDef
	PriceMultiplier float64
	NPCIsBeggar     bool
	NPCKey          string
	DefaultStackMax int // loreconfig tuning fallback when an ItemDef has no StackMax; 99 when zero
	CarriedCapacity int // loreconfig tuning fallback bounding Carried slot count; 20 when zero
}

// Context is the trade-context schema returned to the orchestrator
// (spec §6): one line summarizing the just-executed action.
type Context struct {
	Action                 string
	Mode                   string
	Status                 string
	NPCName                string
	QtyOffer               int
	UnitPrice              int
	ItemID                 string
	ItemName               string
	TotalPrice             int
	TradeTurnID            int
	GoldAfter              int
	InventoryAfter         string
	NPCKey                 string
	SecretCharityCandidate bool
}

// ToReputationContext adapts c to reputation.TradeContext for feeding
// ApplyTradeReputation after a successful execute: targetIsBeggar should
// be c.SecretCharityCandidate's underlying NPC-tag fact, not the price
// comparison itself, since a charity sale at catalog price still counts
// as giving to a beggar.
func (c Context) ToReputationContext(npcRole, npcLabel, mapAnchor string, targetIsBeggar bool) reputation.TradeContext {
	return reputation.TradeContext{
		Action:         c.Action,
		Status:         c.Status,
		QtyDone:        c.QtyOffer,
		TargetIsBeggar: targetIsBeggar,
		NPCName:        c.NPCName,
		NPCRole:        npcRole,
		NPCLabel:       npcLabel,
		MapAnchor:      mapAnchor,
	}
}

// ExecuteResult is ExecuteTrade's full outcome.
type ExecuteResult struct {
	OK        bool
	Context   Context
	Lines     []string
	Session   Session
	GoldAfter int
}

const (
	statusOK                = "ok"
	statusInsufficientFunds = "insufficient_funds"
	statusInventoryFull     = "inventory_full"
	statusCartEmpty         = "cart_empty"
	statusInsufficientStock = "insufficient_stock"
)

// ExecuteTrade atomically applies the session's cart against ctx's
// player/inventory: for a sell, decrements inventory nearest-last-first
// and credits gold; for a buy, verifies gold then allocates inventory
// slots and debits gold. An empty cart reports cart_empty; any shortfall
// rolls every partial mutation back and reports insufficient_stock (sell)
// or insufficient_funds/inventory_full (buy) with no reputation
// side-effects. On success the session moves to done, a recap line is
// appended to the transcript, and a secret_charity_candidate flag is set
// when a sell to a beggar-tagged NPC clears below the item's catalog
// value.
func (e *Engine) ExecuteTrade(ctx ExecuteContext) ExecuteResult {
	npcName := e.session.NPCID
	action := "sell"
	if e.session.Mode == ModeBuy {
		action = "buy"
	}

	if len(e.session.Cart) == 0 {
		return e.failExecute(action, npcName, ctx, statusCartEmpty, "Panier vide.")
	}

	total := 0
	for _, line := range e.session.Cart {
		total += line.Subtotal
	}

	invSnapshot := ctx.Inventory.Snapshot()
	goldAfter := ctx.Gold
	secretCharity := false

	switch e.session.Mode {
	case ModeSell:
		for _, line := range e.session.Cart {
			if !ctx.Inventory.RemoveNearestLastFirst(line.ItemID, line.Qty) {
				*ctx.Inventory = invSnapshot
				return e.failExecute(action, npcName, ctx, statusInsufficientStock, "Tu n'as pas assez de cet objet.")
			}
			if ctx.NPCIsBeggar {
				if def, ok := ctx.ItemDefs[line.ItemID]; ok && line.UnitPrice < def.Value {
					secretCharity = true
				}
			}
		}
		goldAfter = ctx.Gold + total
	case ModeBuy:
		if ctx.Gold < total {
			return e.failExecute(action, npcName, ctx, statusInsufficientFunds, "Pas assez d'or.")
		}
		defaultStackMax := ctx.DefaultStackMax
		if defaultStackMax <= 0 {
			defaultStackMax = 99
		}
		capacity := ctx.CarriedCapacity
		if capacity <= 0 {
			capacity = 20
		}
		for _, line := range e.session.Cart {
			stackMax := defaultStackMax
			if def, ok := ctx.ItemDefs[line.ItemID]; ok && def.StackMax > 0 {
				stackMax = def.StackMax
			}
			if !ctx.Inventory.AddMergeThenEmpty(line.ItemID, line.Qty, stackMax, capacity) {
				*ctx.Inventory = invSnapshot
				return e.failExecute(action, npcName, ctx, statusInventoryFull, "Inventaire plein.")
			}
		}
		goldAfter = ctx.Gold - total
	}

	e.session.Status = StatusDone
	line0 := e.session.Cart[0]
	verb := "Vente executee"
	if e.session.Mode == ModeBuy {
		verb = "Achat execute"
	}
	recap := verb + ": " + e.BuildRecapText() + ". Total " + strconv.Itoa(total) + " or. On continue le commerce ?"
	e.appendTranscript(recap)

	tradeCtx := Context{
		Action:                 action,
		Mode:                   string(e.session.Mode),
		Status:                 statusOK,
		NPCName:                npcName,
		QtyOffer:               line0.Qty,
		UnitPrice:              line0.UnitPrice,
		ItemID:                 line0.ItemID,
		ItemName:               line0.ItemName,
		TotalPrice:             total,
		TradeTurnID:            e.session.TurnID,
		GoldAfter:              goldAfter,
		NPCKey:                 ctx.NPCKey,
		SecretCharityCandidate: secretCharity,
	}
	return ExecuteResult{
		OK:        true,
		Context:   tradeCtx,
		Lines:     []string{recap},
		Session:   e.session,
		GoldAfter: goldAfter,
	}
}

func (e *Engine) failExecute(action, npcName string, ctx ExecuteContext, status, line string) ExecuteResult {
	e.session.Status = StatusDone
	e.appendTranscript(line)
	var line0 CartLine
	if len(e.session.Cart) > 0 {
		line0 = e.session.Cart[0]
	}
	tradeCtx := Context{
		Action:      action,
		Mode:        string(e.session.Mode),
		Status:      status,
		NPCName:     npcName,
		QtyOffer:    line0.Qty,
		UnitPrice:   line0.UnitPrice,
		ItemID:      line0.ItemID,
		ItemName:    line0.ItemName,
		TradeTurnID: e.session.TurnID,
		GoldAfter:   ctx.Gold,
		NPCKey:      ctx.NPCKey,
	}
	return ExecuteResult{
		OK:        false,
		Context:   tradeCtx,
		Lines:     []string{line},
		Session:   e.session,
		GoldAfter: ctx.Gold,
	}
}
