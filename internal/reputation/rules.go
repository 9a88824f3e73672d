package reputation

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
)

// TradeRules governs reputation deltas applied by trade/charity actions.
type TradeRules struct {
	MerchantFaction           string `json:"merchant_faction"`
	MerchantDeltaSmall        int    `json:"merchant_delta_small"`
	MerchantDeltaLarge        int    `json:"merchant_delta_large"`
	MerchantLargeQtyThreshold int    `json:"merchant_large_qty_threshold"`
	CharityFaction            string `json:"charity_faction"`
	CharityDeltaSmall         int    `json:"charity_delta_small"`
	CharityDeltaLarge         int    `json:"charity_delta_large"`
	CharityLargeQtyThreshold  int    `json:"charity_large_qty_threshold"`
	GenericGiveDelta          int    `json:"generic_give_delta"`
}

// QuestRules governs reputation deltas applied on quest completion.
type QuestRules struct {
	DefaultFaction    string            `json:"default_faction"`
	DefaultDelta      int               `json:"default_delta"`
	ObjectiveDeltas   map[string]int    `json:"objective_deltas"`
	ObjectiveFactions map[string]string `json:"objective_factions"`
}

// DungeonRules governs reputation deltas applied on dungeon events.
type DungeonRules struct {
	Faction            string   `json:"faction"`
	DefaultDelta       int      `json:"default_delta"`
	HighFloorDelta     int      `json:"high_floor_delta"`
	HighFloorThreshold int      `json:"high_floor_threshold"`
	BossDelta          int      `json:"boss_delta"`
	EligibleEventTypes []string `json:"eligible_event_types"`
}

// Rules is the full tunable reputation rule table: trade, quest, and
// dungeon sub-rules, loadable from a reputation_rules.json override.
type Rules struct {
	Trade   TradeRules   `json:"trade"`
	Quest   QuestRules   `json:"quest"`
	Dungeon DungeonRules `json:"dungeon"`
}

// DefaultRules returns the built-in rule table, matching the values
// shipped with the campaign data by default.
func DefaultRules() Rules {
	return Rules{
		Trade: TradeRules{
			MerchantFaction:           "Marchands",
			MerchantDeltaSmall:        1,
			MerchantDeltaLarge:        2,
			MerchantLargeQtyThreshold: 2,
			CharityFaction:            "Peuple",
			CharityDeltaSmall:         2,
			CharityDeltaLarge:         3,
			CharityLargeQtyThreshold:  2,
			GenericGiveDelta:          1,
		},
		Quest: QuestRules{
			DefaultFaction: "Habitants",
			DefaultDelta:   2,
			ObjectiveDeltas: map[string]int{
				"clear_dungeon_floors": 3,
				"talk_to_npc":          3,
				"reach_anchor":         3,
				"explore_locations":    3,
				"collect_gold":         2,
				"send_messages":        2,
			},
			ObjectiveFactions: map[string]string{
				"clear_dungeon_floors": "Aventuriers",
				"talk_to_npc":          "Aventuriers",
				"reach_anchor":         "Explorateurs",
				"explore_locations":    "Explorateurs",
				"collect_gold":         "Marchands",
				"send_messages":        "Habitants",
			},
		},
		Dungeon: DungeonRules{
			Faction:            "Aventuriers",
			DefaultDelta:       1,
			HighFloorDelta:     2,
			HighFloorThreshold: 10,
			BossDelta:          3,
			EligibleEventTypes: []string{"monster", "mimic", "boss"},
		},
	}
}

// NormalizeRules fills any missing or out-of-range field in raw with its
// default, clamping deltas to [-25,25] and faction names through
// NormalizeFactionName. Used both for a freshly loaded override file and
// for callers that pass partial rules inline.
func NormalizeRules(raw Rules) Rules {
	def := DefaultRules()
	out := def

	if name := NormalizeFactionName(raw.Trade.MerchantFaction); name != "" {
		out.Trade.MerchantFaction = name
	}
	out.Trade.MerchantDeltaSmall = clampOrDefault(raw.Trade.MerchantDeltaSmall, def.Trade.MerchantDeltaSmall)
	out.Trade.MerchantDeltaLarge = clampOrDefault(raw.Trade.MerchantDeltaLarge, def.Trade.MerchantDeltaLarge)
	if raw.Trade.MerchantLargeQtyThreshold > 0 {
		out.Trade.MerchantLargeQtyThreshold = raw.Trade.MerchantLargeQtyThreshold
	}
	if name := NormalizeFactionName(raw.Trade.CharityFaction); name != "" {
		out.Trade.CharityFaction = name
	}
	out.Trade.CharityDeltaSmall = clampOrDefault(raw.Trade.CharityDeltaSmall, def.Trade.CharityDeltaSmall)
	out.Trade.CharityDeltaLarge = clampOrDefault(raw.Trade.CharityDeltaLarge, def.Trade.CharityDeltaLarge)
	if raw.Trade.CharityLargeQtyThreshold > 0 {
		out.Trade.CharityLargeQtyThreshold = raw.Trade.CharityLargeQtyThreshold
	}
	out.Trade.GenericGiveDelta = clampOrDefault(raw.Trade.GenericGiveDelta, def.Trade.GenericGiveDelta)

	if name := NormalizeFactionName(raw.Quest.DefaultFaction); name != "" {
		out.Quest.DefaultFaction = name
	}
	out.Quest.DefaultDelta = clampOrDefault(raw.Quest.DefaultDelta, def.Quest.DefaultDelta)
	out.Quest.ObjectiveDeltas = mergeDeltas(def.Quest.ObjectiveDeltas, raw.Quest.ObjectiveDeltas, out.Quest.DefaultDelta)
	out.Quest.ObjectiveFactions = mergeFactions(def.Quest.ObjectiveFactions, raw.Quest.ObjectiveFactions, out.Quest.DefaultFaction)

	if name := NormalizeFactionName(raw.Dungeon.Faction); name != "" {
		out.Dungeon.Faction = name
	}
	out.Dungeon.DefaultDelta = clampOrDefault(raw.Dungeon.DefaultDelta, def.Dungeon.DefaultDelta)
	out.Dungeon.HighFloorDelta = clampOrDefault(raw.Dungeon.HighFloorDelta, def.Dungeon.HighFloorDelta)
	if raw.Dungeon.HighFloorThreshold > 0 {
		out.Dungeon.HighFloorThreshold = raw.Dungeon.HighFloorThreshold
	}
	out.Dungeon.BossDelta = clampOrDefault(raw.Dungeon.BossDelta, def.Dungeon.BossDelta)
	if events := cleanEventTypes(raw.Dungeon.EligibleEventTypes); len(events) > 0 {
		out.Dungeon.EligibleEventTypes = events
	}

	return out
}

func clampOrDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return clampInt(v, AdjustMin, AdjustMax)
}

func mergeDeltas(base, override map[string]int, fallback int) map[string]int {
	merged := make(map[string]int, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		if v == 0 {
			v = fallback
		}
		merged[key] = clampInt(v, AdjustMin, AdjustMax)
	}
	return merged
}

func mergeFactions(base, override map[string]string, fallback string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		name := NormalizeFactionName(v)
		if name == "" {
			name = fallback
		}
		merged[key] = name
	}
	return merged
}

func cleanEventTypes(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		v := strings.ToLower(strings.TrimSpace(r))
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) > 16 {
		out = out[:16]
	}
	return out
}

// LoadRulesFile reads and normalizes a reputation_rules.json override.
// A missing or malformed file yields the defaults, never an error: the
// rule table always has a usable value.
func LoadRulesFile(path string) Rules {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultRules()
	}
	var raw Rules
	if err := json.Unmarshal(data, &raw); err != nil {
		return DefaultRules()
	}
	return NormalizeRules(raw)
}

// RuleStore holds the active rule table and lets a hot-reload watcher
// (see internal/loreconfig) swap it atomically as reputation_rules.json
// changes on disk.
type RuleStore struct {
	mu    sync.RWMutex
	rules Rules
}

// NewRuleStore returns a store seeded with the default rule table.
func NewRuleStore() *RuleStore {
	return &RuleStore{rules: DefaultRules()}
}

// Get returns the currently active rule table.
func (s *RuleStore) Get() Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Set replaces the active rule table, e.g. after a fsnotify write event
// on the override file.
func (s *RuleStore) Set(rules Rules) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

// ReloadFrom re-reads path and swaps in the result. Returns the rules
// that are now active.
func (s *RuleStore) ReloadFrom(path string) Rules {
	rules := LoadRulesFile(path)
	s.Set(rules)
	return rules
}
