package trade

import (
	"strconv"
	"strings"
)

// Engine drives one trade session's state machine. It holds the active
// Session; callers round-trip it through LoadSession/ExportSession the
// same way the travel Engine round-trips its travel state.
type Engine struct {
	session Session
}

// New returns an engine seeded with a fresh idle session.
func New() *Engine {
	return &Engine{session: Idle()}
}

// LoadSession replaces the engine's session with a normalized raw.
func (e *Engine) LoadSession(raw Session) {
	e.session = Normalize(raw)
}

// ExportSession returns the current session snapshot.
func (e *Engine) ExportSession() Session {
	return e.session
}

func (e *Engine) appendTranscript(line string) {
	if line == "" {
		return
	}
	e.session.Transcript = append(e.session.Transcript, line)
	if len(e.session.Transcript) > 10 {
		e.session.Transcript = e.session.Transcript[len(e.session.Transcript)-10:]
	}
}

// ResetToIdle discards the cart/negotiation and returns to idle,
// preserving nothing but the turn counter so fingerprints stay monotonic.
func (e *Engine) ResetToIdle() Session {
	turnID := e.session.TurnID
	e.session = Idle()
	e.session.TurnID = turnID
	return e.session
}

// StartTrade opens a session with npcID in mode. If a different NPC's
// session is already open, it is reset to idle first (matching the
// Python UI's "npc changed mid-session" guard).
func (e *Engine) StartTrade(npcID string, mode Mode, llmEnabled bool) Session {
	npcID = cleanText(npcID, 120)
	if e.session.Status != StatusIdle {
		current := strings.ToLower(e.session.NPCID)
		asked := strings.ToLower(npcID)
		if current != "" && asked != "" && current != asked {
			e.ResetToIdle()
		}
	}
	e.session.Status = StatusSelecting
	e.session.Mode = validMode(mode)
	e.session.NPCID = npcID
	e.session.LLMEnabled = llmEnabled
	e.session.TurnID++
	e.appendTranscript("Session commerce ouverte (" + string(e.session.Mode) + ").")
	return e.session
}

// RunActionGuard computes the duplicate-action fingerprint for plainText
// against the current status and npc, and compares it to the session's
// last fingerprint. A match is refused: the session is returned
// unmodified and duplicate=true. Otherwise the fingerprint is recorded
// and duplicate=false.
func (e *Engine) RunActionGuard(plainText string) (Session, bool) {
	fp := fingerprint(e.session.Status, strings.ToLower(strings.Join(strings.Fields(plainText), " ")), e.session.NPCID)
	if fp != "" && fp == e.session.LastActionFingerprint {
		return e.session, true
	}
	e.session.LastActionFingerprint = fp
	return e.session, false
}

// ProposeBundleOptions builds a pending quantity-arbitration question
// when intent doesn't already resolve to an exact quantity: nil when the
// intent is already unambiguous (explicit qty, sell_all, or one_by_one).
func (e *Engine) ProposeBundleOptions(intent Intent, itemName string) *PendingQuestion {
	if intent.SellAll || intent.OneByOne || intent.Qty != nil {
		return nil
	}
	if intent.MaxQty <= 1 {
		return nil
	}
	q := &PendingQuestion{
		Text:    "Combien de " + itemName + " ? (tout / une par une / un nombre)",
		ItemID:  intent.ItemID,
		MaxQty:  intent.MaxQty,
		Options: []string{"tout", "une", "qty"},
	}
	e.session.PendingQuestion = q
	e.session.Status = StatusSelecting
	return q
}

// PriceForItem derives a cart unit price from def's catalog value and the
// reputation-driven merchant multiplier, rounding to the nearest copper.
func PriceForItem(def ItemDef, multiplier float64) int {
	price := float64(def.Value) * multiplier
	if price < 0 {
		price = 0
	}
	return int(price + 0.5)
}

// AddToCart replaces the whole cart with a single line for itemID at qty
// units, priced by unitPrice, and clears any pending question.
func (e *Engine) AddToCart(itemID, itemName string, qty, unitPrice int) Session {
	e.session.Cart = []CartLine{newCartLine(itemID, itemName, qty, unitPrice)}
	e.session.PendingQuestion = nil
	return e.session
}

// ApplyQuantityChoice resolves a pending quantity question: "sell_all"
// uses maxQty, "sell_one" uses 1, "set_qty" uses quantity clamped to
// [1,maxQty]. Transitions the session to confirming and returns a
// human-readable confirmation line.
func (e *Engine) ApplyQuantityChoice(optionID string, quantity, maxQty int, itemID, itemName string, unitPrice int) (Session, string) {
	qty := 1
	switch optionID {
	case "sell_all":
		qty = maxQty
	case "sell_one":
		qty = 1
	default:
		qty = clampInt(quantity, 1, maxInt(1, maxQty))
	}
	e.session.Cart = []CartLine{newCartLine(itemID, itemName, qty, unitPrice)}
	e.session.PendingQuestion = nil
	e.session.Status = StatusConfirming
	info := "Offre preparee. Verifie le recap et confirme."
	e.appendTranscript(info)
	return e.session, info
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ConfirmTrade moves a selecting/confirming session into confirming,
// ready for ExecuteTrade.
func (e *Engine) ConfirmTrade() Session {
	if e.session.Status == StatusSelecting || e.session.Status == StatusConfirming {
		e.session.Status = StatusConfirming
	}
	return e.session
}

// AbortTrade cancels the session, recording a cancellation line.
func (e *Engine) AbortTrade() Session {
	e.session.Status = StatusAborted
	e.session.Cart = nil
	e.session.PendingQuestion = nil
	e.appendTranscript("Transaction annulee.")
	return e.session
}

// BuildRecapText renders the cart as "item x qty, item x qty".
func (e *Engine) BuildRecapText() string {
	parts := make([]string, 0, len(e.session.Cart))
	for _, line := range e.session.Cart {
		parts = append(parts, line.ItemName+" x"+strconv.Itoa(line.Qty))
	}
	return strings.Join(parts, ", ")
}
