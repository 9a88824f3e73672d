package memstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"loreforge/internal/memmodel"
	"loreforge/internal/normalize"
	"loreforge/internal/obslog"
)

// legacyItem mirrors the pre-schema_version fact/event/promise/debt shape,
// which did not always carry a content_hash.
type legacyItem struct {
	Timestamp   time.Time `json:"ts"`
	Text        string    `json:"text"`
	Tags        []string  `json:"tags"`
	Importance  float64   `json:"importance"`
	ContentHash string    `json:"content_hash"`
	Impact      string    `json:"impact"`
	Status      string    `json:"status"`
	Confidence  float64   `json:"confidence"`
}

func (li legacyItem) hash() string {
	if li.ContentHash != "" {
		return li.ContentHash
	}
	return normalize.ContentHash(li.Text)
}

type legacyShortTurn struct {
	Timestamp  time.Time `json:"ts"`
	Role       string    `json:"role"`
	Text       string    `json:"text"`
	Tags       []string  `json:"tags"`
	Importance float64   `json:"importance"`
	TurnID     string    `json:"turn_id"`
}

type legacySave struct {
	NPCID    string            `json:"npc_id"`
	Short    []legacyShortTurn `json:"short"`
	Facts    []legacyItem      `json:"facts"`
	Events   []legacyItem      `json:"events"`
	Promises []legacyItem      `json:"promises"`
	Debts    []legacyItem      `json:"debts"`
	Affinity float64           `json:"affinity"`
	Summary  string            `json:"summary"`
}

// MigrateLegacySave parses a pre-schema save-slot payload and returns an
// equivalent NPCMemory. A missing content_hash is substituted from the
// item's own text, so dedup across repeated migration runs still holds.
func MigrateLegacySave(scopedID string, raw []byte) (*memmodel.NPCMemory, error) {
	var legacy legacySave
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("memstore: parse legacy save: %w", err)
	}

	mem := memmodel.NewNPCMemory(normalize.SanitizeID(scopedID))

	for _, s := range legacy.Short {
		if turn, ok := memmodel.NewShortTurn(s.Timestamp, memmodel.Role(s.Role), s.Text, s.Tags, s.Importance, s.TurnID); ok {
			mem.Short = append(mem.Short, turn)
		}
	}
	for _, f := range legacy.Facts {
		if fact, ok := memmodel.NewFact(f.Timestamp, f.Text, f.Tags, f.Importance, f.Confidence); ok {
			fact.ContentHash = f.hash()
			mem.Long.AddFact(fact)
		}
	}
	for _, e := range legacy.Events {
		if ev, ok := memmodel.NewEvent(e.Timestamp, e.Text, e.Tags, e.Importance, memmodel.Impact(e.Impact)); ok {
			ev.ContentHash = e.hash()
			mem.Long.AddEvent(ev)
		}
	}
	for _, p := range legacy.Promises {
		if pr, ok := memmodel.NewPromise(p.Timestamp, p.Text, p.Tags, p.Importance, memmodel.PromiseStatus(p.Status)); ok {
			pr.ContentHash = p.hash()
			mem.Long.AddPromise(pr)
		}
	}
	for _, d := range legacy.Debts {
		if dt, ok := memmodel.NewDebt(d.Timestamp, d.Text, d.Tags, d.Importance, memmodel.DebtStatus(d.Status)); ok {
			dt.ContentHash = d.hash()
			mem.Long.AddDebt(dt)
		}
	}

	if legacy.Affinity != 0 {
		mem.Long.Relationship.AdjustAffinity(legacy.Affinity)
	}
	if legacy.Summary != "" {
		mem.Long.SetSummary(time.Now(), legacy.Summary)
	}

	return mem, nil
}

type legacySlot struct {
	profile string
	path    string
}

func isSlotFile(name string) bool {
	return strings.HasPrefix(name, "slot_") && strings.HasSuffix(name, ".json")
}

func discoverLegacySlots(savesRoot string) ([]legacySlot, error) {
	var slots []legacySlot

	rootEntries, err := os.ReadDir(savesRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("memstore: list saves root %s: %w", savesRoot, err)
	}

	for _, e := range rootEntries {
		switch {
		case e.IsDir() && e.Name() == "profiles":
			profilesDir := filepath.Join(savesRoot, "profiles")
			profileEntries, err := os.ReadDir(profilesDir)
			if err != nil {
				continue
			}
			for _, p := range profileEntries {
				if !p.IsDir() {
					continue
				}
				slotDir := filepath.Join(profilesDir, p.Name())
				slotEntries, err := os.ReadDir(slotDir)
				if err != nil {
					continue
				}
				for _, se := range slotEntries {
					if isSlotFile(se.Name()) {
						slots = append(slots, legacySlot{profile: p.Name(), path: filepath.Join(slotDir, se.Name())})
					}
				}
			}
		case isSlotFile(e.Name()):
			slots = append(slots, legacySlot{profile: "default", path: filepath.Join(savesRoot, e.Name())})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].path < slots[j].path })
	return slots, nil
}

// RunBootstrapMigration discovers legacy save slots under savesRoot and
// migrates any whose scoped id has no existing NPC memory file yet. It is
// safe to call on every process boot: already-migrated scopes are skipped,
// and a slot that fails to parse is logged and left for manual inspection.
// Returns the number of scopes migrated.
func RunBootstrapMigration(store *Store, savesRoot string) (int, error) {
	slots, err := discoverLegacySlots(savesRoot)
	if err != nil {
		return 0, err
	}

	migrated := 0
	for _, slot := range slots {
		scopedID := normalize.SanitizeID(slot.profile + "__legacy__" + strings.TrimSuffix(filepath.Base(slot.path), ".json"))
		if _, err := os.Stat(store.NPCMemoryPath(scopedID)); err == nil {
			continue
		}

		raw, err := os.ReadFile(slot.path)
		if err != nil {
			obslog.StoreError("memstore: skip unreadable legacy save %s: %v", slot.path, err)
			continue
		}
		mem, err := MigrateLegacySave(scopedID, raw)
		if err != nil {
			obslog.StoreError("memstore: skip unparseable legacy save %s: %v", slot.path, err)
			continue
		}
		if err := store.SaveNPC(mem); err != nil {
			return migrated, err
		}
		migrated++
	}
	return migrated, nil
}
