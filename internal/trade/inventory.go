package trade

// ItemDef is the catalog definition of one tradeable item.
type ItemDef struct {
	ID       string
	Name     string
	Value    int
	StackMax int
}

func (d ItemDef) stackMax() int {
	if d.StackMax < 1 {
		return 99
	}
	return d.StackMax
}

// Slot is one inventory slot, empty when ItemID == "".
type Slot struct {
	ItemID string
	Qty    int
}

// Inventory is a player's carried and stored items, each a fixed list of
// slots. Slot order matters: sell decrements from the nearest-last slot
// across Carried then Storage; buy fills the nearest-first empty slot
// after topping up existing stacks.
type Inventory struct {
	Carried []Slot
	Storage []Slot
}

// Total sums qty across carried and storage for itemID.
func (inv Inventory) Total(itemID string) int {
	total := 0
	for _, s := range inv.Carried {
		if s.ItemID == itemID {
			total += s.Qty
		}
	}
	for _, s := range inv.Storage {
		if s.ItemID == itemID {
			total += s.Qty
		}
	}
	return total
}

// RemoveNearestLastFirst decrements qty units of itemID starting from the
// last Carried slot, then the last Storage slot, reporting whether enough
// stock existed. On failure the inventory is left unmodified.
func (inv *Inventory) RemoveNearestLastFirst(itemID string, qty int) bool {
	if qty <= 0 {
		return true
	}
	if inv.Total(itemID) < qty {
		return false
	}
	remaining := qty
	for i := len(inv.Carried) - 1; i >= 0 && remaining > 0; i-- {
		remaining = drainSlot(&inv.Carried[i], itemID, remaining)
	}
	for i := len(inv.Storage) - 1; i >= 0 && remaining > 0; i-- {
		remaining = drainSlot(&inv.Storage[i], itemID, remaining)
	}
	inv.Carried = compactSlots(inv.Carried)
	inv.Storage = compactSlots(inv.Storage)
	return remaining == 0
}

func drainSlot(slot *Slot, itemID string, remaining int) int {
	if slot.ItemID != itemID || slot.Qty <= 0 {
		return remaining
	}
	take := remaining
	if take > slot.Qty {
		take = slot.Qty
	}
	slot.Qty -= take
	if slot.Qty == 0 {
		slot.ItemID = ""
	}
	return remaining - take
}

func compactSlots(slots []Slot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.ItemID == "" && s.Qty == 0 {
			out = append(out, Slot{})
			continue
		}
		out = append(out, s)
	}
	return out
}

// AddMergeThenEmpty allocates qty units of itemID into Carried: first
// topping up existing same-item stacks up to stackMax, then filling
// empty slots, growing Carried with new empty slots only up to capacity.
// Reports whether every unit was placed; once every stack is maxed and
// Carried already holds capacity slots, it stops and returns false with
// whatever fit already placed (callers needing atomicity must
// snapshot/restore around the call, as ExecuteTrade does).
func (inv *Inventory) AddMergeThenEmpty(itemID string, qty, stackMax, capacity int) bool {
	if qty <= 0 {
		return true
	}
	if stackMax < 1 {
		stackMax = 99
	}
	if capacity < 1 {
		capacity = 20
	}
	remaining := qty
	for i := range inv.Carried {
		if remaining == 0 {
			break
		}
		slot := &inv.Carried[i]
		if slot.ItemID != itemID || slot.Qty >= stackMax {
			continue
		}
		room := stackMax - slot.Qty
		take := remaining
		if take > room {
			take = room
		}
		slot.Qty += take
		remaining -= take
	}
	for i := range inv.Carried {
		if remaining == 0 {
			break
		}
		slot := &inv.Carried[i]
		if slot.ItemID != "" {
			continue
		}
		take := remaining
		if take > stackMax {
			take = stackMax
		}
		slot.ItemID = itemID
		slot.Qty = take
		remaining -= take
	}
	for remaining > 0 && len(inv.Carried) < capacity {
		take := remaining
		if take > stackMax {
			take = stackMax
		}
		inv.Carried = append(inv.Carried, Slot{ItemID: itemID, Qty: take})
		remaining -= take
	}
	return remaining == 0
}

// Snapshot returns a deep copy for rollback-on-failure use.
func (inv Inventory) Snapshot() Inventory {
	return Inventory{
		Carried: append([]Slot(nil), inv.Carried...),
		Storage: append([]Slot(nil), inv.Storage...),
	}
}
