// Package travel implements the travel state machine: departure, ticking
// along a route with fatigue/danger accrual, route events with weighted
// type selection, choice resolution, and arrival. Every normalization
// routine clamps numeric fields and falls back to the idle state on
// malformed input, mirroring the validation contract memmodel applies to
// narrative memory records.
package travel

import "strings"

// Status is a travel state machine state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusTraveling Status = "traveling"
	StatusCamping   Status = "camping"
	StatusArrived   Status = "arrived"
	StatusAborted   Status = "aborted"
)

func validStatus(s Status) Status {
	switch s {
	case StatusIdle, StatusTraveling, StatusCamping, StatusArrived, StatusAborted:
		return s
	default:
		return StatusIdle
	}
}

// EventType is a route event category.
type EventType string

const (
	EventEncounter EventType = "encounter"
	EventAmbush    EventType = "ambush"
	EventHazard    EventType = "hazard"
	EventDiscovery EventType = "discovery"
	EventCamp      EventType = "camp"
)

func validEventType(e EventType) (EventType, bool) {
	switch e {
	case EventEncounter, EventAmbush, EventHazard, EventDiscovery, EventCamp:
		return e, true
	default:
		return "", false
	}
}

// LogEntry is a single travel log line.
type LogEntry struct {
	At       int    `json:"at"`
	Kind     string `json:"kind"`
	Text     string `json:"text"`
	Progress int    `json:"progress"`
}

// Choice is one option of a pending route event.
type Choice struct {
	ID          string         `json:"id"`
	Text        string         `json:"text"`
	RiskTag     string         `json:"risk_tag"`
	EffectsHint string         `json:"effects_hint,omitempty"`
	StatePatch  map[string]any `json:"state_patch,omitempty"`
	TravelPatch map[string]any `json:"travel_patch,omitempty"`
}

// Event is a pending route event awaiting player resolution.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	ShortText  string         `json:"short_text"`
	Choices    []Choice       `json:"choices,omitempty"`
	StatePatch map[string]any `json:"state_patch,omitempty"`
	Interrupt  bool           `json:"interrupt"`
	CombatSeed map[string]any `json:"combat_seed,omitempty"`
}

// Supplies tracks cumulative consumption for the current leg.
type Supplies struct {
	Food    int `json:"food"`
	Water   int `json:"water"`
	Torches int `json:"torches"`
}

// State is the full travel state machine snapshot.
type State struct {
	Status           Status     `json:"status"`
	FromLocationID   string     `json:"from_location_id"`
	ToLocationID     string     `json:"to_location_id"`
	Route            []string   `json:"route"`
	TotalDistance    int        `json:"total_distance"`
	Progress         int        `json:"progress"`
	LastTickAt       *int       `json:"last_tick_at"`
	DangerLevel      int        `json:"danger_level"`
	Fatigue          int        `json:"fatigue"`
	SuppliesUsed     Supplies   `json:"supplies_used"`
	PendingEvent     *Event     `json:"pending_event"`
	EventCooldown    int        `json:"event_cooldown_ticks"`
	RecentEventTypes []string   `json:"recent_event_types"`
	Log              []LogEntry `json:"log"`
}

// Idle returns a fresh idle-state snapshot.
func Idle() State {
	return State{Status: StatusIdle, DangerLevel: 20}
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

func cleanID(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func cleanStatus(s string) Status {
	return validStatus(Status(strings.ToLower(strings.TrimSpace(s))))
}

func cleanEventType(s string) (EventType, bool) {
	return validEventType(EventType(strings.ToLower(strings.TrimSpace(s))))
}

// Normalize repairs a possibly-malformed state: clamps ranges, derives
// total_distance from the route when missing, and forces the idle state's
// fields back to their zero values.
func Normalize(raw State) State {
	state := raw
	state.Status = validStatus(state.Status)

	cleanRoute := make([]string, 0, len(state.Route))
	for _, r := range state.Route {
		if c := cleanID(r, 120); c != "" {
			cleanRoute = append(cleanRoute, c)
		}
	}
	state.Route = cleanRoute
	state.FromLocationID = cleanID(state.FromLocationID, 120)
	state.ToLocationID = cleanID(state.ToLocationID, 120)

	if state.TotalDistance < 0 {
		state.TotalDistance = 0
	}
	if state.Progress < 0 {
		state.Progress = 0
	}
	if state.TotalDistance <= 0 && len(state.Route) > 0 {
		state.TotalDistance = maxInt(20, (len(state.Route)-1)*30)
	}
	if state.TotalDistance > 0 {
		state.Progress = minInt(state.Progress, state.TotalDistance)
	} else {
		state.Progress = 0
	}
	state.DangerLevel = clampInt(state.DangerLevel, 0, 100)
	state.Fatigue = clampInt(state.Fatigue, 0, 100)
	state.SuppliesUsed = normalizeSupplies(state.SuppliesUsed)
	state.EventCooldown = clampInt(state.EventCooldown, 0, 6)
	state.RecentEventTypes = normalizeRecentEventTypes(state.RecentEventTypes)
	state.Log = normalizeLog(state.Log)

	if state.Status == StatusIdle {
		state.FromLocationID = ""
		state.ToLocationID = ""
		state.Route = nil
		state.TotalDistance = 0
		state.Progress = 0
		state.PendingEvent = nil
		state.LastTickAt = nil
		state.Fatigue = 0
		state.EventCooldown = 0
		state.RecentEventTypes = nil
	}

	if state.TotalDistance <= 0 && (state.Status == StatusTraveling || state.Status == StatusCamping || state.Status == StatusArrived) {
		if len(state.Route) > 0 {
			state.TotalDistance = maxInt(20, (len(state.Route)-1)*30)
		} else {
			state.TotalDistance = 30
		}
	}

	state.Progress = clampInt(state.Progress, 0, maxInt(0, state.TotalDistance))
	if state.Status == StatusArrived && state.TotalDistance > 0 {
		state.Progress = state.TotalDistance
	}

	return state
}

func normalizeSupplies(s Supplies) Supplies {
	return Supplies{
		Food:    maxInt(0, s.Food),
		Water:   maxInt(0, s.Water),
		Torches: maxInt(0, s.Torches),
	}
}

func normalizeRecentEventTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if et, ok := cleanEventType(t); ok {
			out = append(out, string(et))
		}
	}
	if len(out) > 4 {
		out = out[len(out)-4:]
	}
	return out
}

func normalizeLog(log []LogEntry) []LogEntry {
	out := make([]LogEntry, 0, len(log))
	for _, e := range log {
		out = append(out, LogEntry{
			At:       maxInt(0, e.At),
			Kind:     cleanIDOrDefault(e.Kind, 40, "info"),
			Text:     cleanID(e.Text, 220),
			Progress: maxInt(0, e.Progress),
		})
	}
	if len(out) > 80 {
		out = out[len(out)-80:]
	}
	return out
}

func cleanIDOrDefault(s string, maxLen int, def string) string {
	if c := cleanID(s, maxLen); c != "" {
		return c
	}
	return def
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
