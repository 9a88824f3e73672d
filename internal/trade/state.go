// Package trade implements the trade session state machine: starting a
// session with an NPC, proposing bundle options for an ambiguous
// quantity, carting items at reputation-adjusted prices, and executing
// an atomic buy/sell against a player's gold and inventory.
package trade

import "strings"

// Status is a trade session state machine state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSelecting  Status = "selecting"
	StatusConfirming Status = "confirming"
	StatusDone       Status = "done"
	StatusAborted    Status = "aborted"
)

func validStatus(s Status) Status {
	switch s {
	case StatusIdle, StatusSelecting, StatusConfirming, StatusDone, StatusAborted:
		return s
	default:
		return StatusIdle
	}
}

// Mode is which side of the counter the player stands on.
type Mode string

const (
	ModeSell Mode = "sell"
	ModeBuy  Mode = "buy"
)

func validMode(m Mode) Mode {
	switch m {
	case ModeSell, ModeBuy:
		return m
	default:
		return ModeSell
	}
}

// CartLine is one line item in the session's cart.
type CartLine struct {
	ItemID    string `json:"item_id"`
	ItemName  string `json:"item_name"`
	Qty       int    `json:"qty"`
	UnitPrice int    `json:"unit_price"`
	Subtotal  int    `json:"subtotal"`
}

func newCartLine(itemID, itemName string, qty, unitPrice int) CartLine {
	if qty < 1 {
		qty = 1
	}
	if unitPrice < 0 {
		unitPrice = 0
	}
	return CartLine{
		ItemID:    itemID,
		ItemName:  itemName,
		Qty:       qty,
		UnitPrice: unitPrice,
		Subtotal:  qty * unitPrice,
	}
}

// Negotiation is the caller-visible mood/trust/greed/reputation triple
// computed when a sell/buy intent is first recognized.
type Negotiation struct {
	Mood     int `json:"mood"`
	Trust    int `json:"trust"`
	Greed    int `json:"greed"`
	RepBonus int `json:"rep_bonus"`
}

// PendingQuestion is an outstanding quantity-arbitration prompt.
type PendingQuestion struct {
	Text    string   `json:"text"`
	ItemID  string   `json:"item_id"`
	MaxQty  int      `json:"max_qty"`
	Options []string `json:"options,omitempty"`
}

// Session is the full trade session state machine snapshot.
type Session struct {
	Status                Status           `json:"status"`
	Mode                  Mode             `json:"mode"`
	NPCID                 string           `json:"npc_id"`
	Cart                  []CartLine       `json:"cart"`
	PendingQuestion       *PendingQuestion `json:"pending_question"`
	Negotiation           Negotiation      `json:"negotiation"`
	ProposedTerms         map[string]any   `json:"proposed_terms,omitempty"`
	Transcript            []string         `json:"transcript"`
	TurnID                int              `json:"turn_id"`
	LastActionFingerprint string           `json:"last_action_fingerprint"`
	LastLLMTurnID         int              `json:"last_llm_turn_id"`
	LLMEnabled            bool             `json:"llm_enabled"`
	LastPlayerIntent      string           `json:"last_player_intent"`
}

// Idle returns a fresh idle-state session.
func Idle() Session {
	return Session{Status: StatusIdle, Mode: ModeSell}
}

func cleanText(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxLen > 0 {
		if runes := []rune(s); len(runes) > maxLen {
			s = string(runes[:maxLen])
		}
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Normalize repairs a possibly-malformed session: clamps ranges, caps the
// transcript ring to 10 entries, and zeroes transient fields when
// Status==StatusIdle.
func Normalize(raw Session) Session {
	s := raw
	s.Status = validStatus(s.Status)
	s.Mode = validMode(s.Mode)
	s.NPCID = cleanText(s.NPCID, 120)

	cart := make([]CartLine, 0, len(s.Cart))
	for _, line := range s.Cart {
		if line.ItemID == "" {
			continue
		}
		cart = append(cart, newCartLine(cleanText(line.ItemID, 80), cleanText(line.ItemName, 120), line.Qty, line.UnitPrice))
	}
	s.Cart = cart

	s.Negotiation.Mood = clampInt(s.Negotiation.Mood, 0, 100)
	s.Negotiation.Trust = clampInt(s.Negotiation.Trust, 0, 100)
	s.Negotiation.Greed = clampInt(s.Negotiation.Greed, 0, 100)
	s.Negotiation.RepBonus = clampInt(s.Negotiation.RepBonus, -20, 20)

	if len(s.Transcript) > 10 {
		s.Transcript = s.Transcript[len(s.Transcript)-10:]
	}
	if s.TurnID < 0 {
		s.TurnID = 0
	}
	if s.LastLLMTurnID < 0 {
		s.LastLLMTurnID = 0
	}
	s.LastActionFingerprint = cleanText(s.LastActionFingerprint, 300)
	s.LastPlayerIntent = cleanText(s.LastPlayerIntent, 220)

	if s.Status == StatusIdle {
		s.NPCID = ""
		s.Cart = nil
		s.PendingQuestion = nil
		s.ProposedTerms = nil
		s.Negotiation = Negotiation{}
	}
	return s
}

func fingerprint(status Status, plainText, npcID string) string {
	return string(status) + "|" + plainText + "|" + strings.ToLower(npcID)
}
