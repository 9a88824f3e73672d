package travel

import (
	"fmt"
	"math/rand"
	"strings"
)

// Action is a caller-chosen tick action.
type Action string

const (
	ActionContinue   Action = "continue"
	ActionAccelerate Action = "accelerate"
	ActionDetour     Action = "detour"
	ActionCamp       Action = "camp"
)

func cleanAction(a string) Action {
	switch Action(strings.ToLower(strings.TrimSpace(a))) {
	case ActionAccelerate:
		return ActionAccelerate
	case ActionDetour:
		return ActionDetour
	case ActionCamp:
		return ActionCamp
	default:
		return ActionContinue
	}
}

// World carries the ambient world signals a tick reacts to.
type World struct {
	GlobalTension    int
	InstabilityLevel int
	TimeOfDay        string
	TravelEventBias  map[string]int
}

// Player carries the ambient player signals a tick reacts to.
type Player struct {
	WorldTimeMinutes int
}

// StartOptions configures start_travel. DangerLevel is a pointer so an
// explicit 0 can be distinguished from "unset" (which defaults to 25).
type StartOptions struct {
	Route           []string
	SegmentDistance int
	TotalDistance   int
	DangerLevel     *int
	Fatigue         int
	SuppliesUsed    Supplies
}

// Engine drives one travel state machine instance. Every instance owns a
// single seeded random source so test suites can reproduce a tick
// sequence exactly.
type Engine struct {
	rng                  *rand.Rand
	state                State
	baseSpeed            int
	eventWeightOverrides map[EventType]int
}

// New constructs an Engine seeded deterministically, or from a
// system-random source when seed is nil.
func New(seed *int64) *Engine {
	var src rand.Source
	if seed != nil {
		src = rand.NewSource(*seed)
	} else {
		src = rand.NewSource(rand.Int63())
	}
	return &Engine{rng: rand.New(src), state: Idle(), baseSpeed: 12}
}

// SetBaseSpeed overrides the default travel speed (12) with a
// loreconfig-provided tuning value. v<=0 is ignored.
func (e *Engine) SetBaseSpeed(v int) {
	if v > 0 {
		e.baseSpeed = v
	}
}

// SetEventWeightOverrides replaces the base weight for each named event
// type with a loreconfig-provided value; zero/absent entries keep the
// built-in default.
func (e *Engine) SetEventWeightOverrides(weights map[EventType]int) {
	e.eventWeightOverrides = weights
}

// LoadState replaces the engine's state with a normalized copy of raw.
func (e *Engine) LoadState(raw State) State {
	e.state = Normalize(raw)
	return e.state
}

// ExportState returns the engine's current, normalized state.
func (e *Engine) ExportState() State {
	e.state = Normalize(e.state)
	return e.state
}

func nightLike(timeOfDay string) bool {
	return timeOfDay == "night" || timeOfDay == "nightfall"
}

// StartTravel begins a new leg from from_id to to_id.
func (e *Engine) StartTravel(fromID, toID string, opts StartOptions) State {
	cleanRoute := make([]string, 0, len(opts.Route))
	for _, r := range opts.Route {
		if c := cleanID(r, 120); c != "" {
			cleanRoute = append(cleanRoute, c)
		}
	}

	from := cleanID(fromID, 120)
	to := cleanID(toID, 120)
	if from == "" && len(cleanRoute) > 0 {
		from = cleanRoute[0]
	}
	if to == "" && len(cleanRoute) > 0 {
		to = cleanRoute[len(cleanRoute)-1]
	}

	if len(cleanRoute) == 0 {
		switch {
		case from != "" && to != "" && from != to:
			cleanRoute = []string{from, to}
		case from != "":
			cleanRoute = []string{from}
		}
	}

	segmentDistance := opts.SegmentDistance
	if segmentDistance <= 0 {
		segmentDistance = 30
	}
	segmentDistance = maxInt(12, segmentDistance)

	totalDistance := opts.TotalDistance
	if totalDistance <= 0 {
		totalDistance = maxInt(20, maxInt(1, len(cleanRoute)-1)*segmentDistance)
	} else {
		totalDistance = maxInt(20, totalDistance)
	}

	danger := 25
	if opts.DangerLevel != nil {
		danger = *opts.DangerLevel
	}

	e.state = Normalize(State{
		Status:         StatusTraveling,
		FromLocationID: from,
		ToLocationID:   to,
		Route:          cleanRoute,
		TotalDistance:  totalDistance,
		Progress:       0,
		DangerLevel:    clampInt(danger, 0, 100),
		Fatigue:        clampInt(opts.Fatigue, 0, 100),
		SuppliesUsed:   normalizeSupplies(opts.SuppliesUsed),
	})
	e.appendLog("start", fmt.Sprintf("Depart %s -> %s", from, to))
	return e.ExportState()
}

// TickTravel advances the travel clock by one step, returning the
// refreshed state and any newly triggered event (nil if none).
func (e *Engine) TickTravel(world World, player Player, action Action) (State, *Event) {
	e.state = Normalize(e.state)
	state := &e.state

	if state.Status != StatusTraveling && state.Status != StatusCamping {
		return e.ExportState(), nil
	}
	if state.PendingEvent != nil {
		return e.ExportState(), state.PendingEvent
	}

	actionKey := cleanAction(string(action))
	timeOfDay := strings.ToLower(strings.TrimSpace(world.TimeOfDay))
	if timeOfDay == "" {
		timeOfDay = "morning"
	}
	tension := clampInt(world.GlobalTension, 0, 100)
	instability := clampInt(world.InstabilityLevel, 0, 100)
	nowMinutes := maxInt(0, player.WorldTimeMinutes)

	if actionKey == ActionCamp {
		state.Status = StatusCamping
		state.Fatigue = maxInt(0, state.Fatigue-(12+e.rng.Intn(11)))
		state.DangerLevel = maxInt(0, state.DangerLevel-(2+e.rng.Intn(7)))
		torches := 0
		if nightLike(timeOfDay) {
			torches = 1
		}
		e.consumeSupplies(1, 1, torches)
		state.LastTickAt = intPtr(nowMinutes)
		e.appendLog("camp", "Le groupe campe pour recuperer.")

		if state.EventCooldown > 0 {
			state.EventCooldown = maxInt(0, state.EventCooldown-1)
		} else {
			forced := EventCamp
			event := e.maybeRouteEvent(&forced, tension, instability, timeOfDay, world.TravelEventBias)
			if event != nil {
				state.PendingEvent = event
				state.EventCooldown = 1
				if state.DangerLevel >= 70 {
					state.EventCooldown = 2
				}
				e.appendLog("event", orDefault(event.ShortText, "Evenement de camp"))
				return e.ExportState(), event
			}
		}
		return e.ExportState(), nil
	}

	if state.Status == StatusCamping {
		state.Status = StatusTraveling
	}

	speed := e.baseSpeed - state.Fatigue/25 - state.DangerLevel/35
	if nightLike(timeOfDay) {
		speed -= 2
	}

	fatigueGain := 4
	switch actionKey {
	case ActionAccelerate:
		speed += 6
		fatigueGain += 6
		state.DangerLevel = minInt(100, state.DangerLevel+(4+e.rng.Intn(5)))
	case ActionDetour:
		speed -= 4
		fatigueGain += 2
		state.DangerLevel = maxInt(0, state.DangerLevel-(5+e.rng.Intn(6)))
	}

	speed = maxInt(3, speed)
	progressGain := maxInt(2, speed+(e.rng.Intn(4)-1))
	state.Progress = minInt(state.TotalDistance, state.Progress+progressGain)
	state.Fatigue = minInt(100, state.Fatigue+fatigueGain+e.rng.Intn(4))
	dangerDelta := 0
	if actionKey == ActionAccelerate {
		dangerDelta++
	}
	if instability >= 70 {
		dangerDelta++
	}
	state.DangerLevel = clampInt(state.DangerLevel+dangerDelta, 0, 100)

	torches := 0
	if nightLike(timeOfDay) {
		torches = 1
	}
	e.consumeSupplies(1, 1, torches)
	state.LastTickAt = intPtr(nowMinutes)

	e.appendLog("tick", fmt.Sprintf("Progression +%d (%d/%d)", progressGain, state.Progress, state.TotalDistance))

	if state.Progress >= state.TotalDistance {
		state.Status = StatusArrived
		state.PendingEvent = nil
		e.appendLog("arrive", "Destination atteinte.")
		return e.ExportState(), nil
	}

	if state.EventCooldown > 0 {
		state.EventCooldown = maxInt(0, state.EventCooldown-1)
		return e.ExportState(), nil
	}

	event := e.maybeRouteEvent(nil, tension, instability, timeOfDay, world.TravelEventBias)
	if event != nil {
		state.PendingEvent = event
		state.EventCooldown = 1
		if state.DangerLevel >= 70 {
			state.EventCooldown = 2
		}
		e.appendLog("event", orDefault(event.ShortText, "Evenement de route"))
		return e.ExportState(), event
	}

	return e.ExportState(), nil
}

// ResolveTravelChoice applies the chosen pending-event option's
// travel_patch to the state and returns its state_patch for the caller
// to apply to the broader orchestration state.
func (e *Engine) ResolveTravelChoice(choiceID string) map[string]any {
	e.state = Normalize(e.state)
	event := e.state.PendingEvent
	if event == nil {
		return map[string]any{}
	}

	target := strings.ToLower(strings.TrimSpace(choiceID))
	if target == "" {
		return map[string]any{}
	}

	var chosen *Choice
	for i := range event.Choices {
		if strings.ToLower(strings.TrimSpace(event.Choices[i].ID)) == target {
			chosen = &event.Choices[i]
			break
		}
	}
	if chosen == nil {
		return map[string]any{}
	}

	progressDelta := intField(chosen.TravelPatch, "progress_delta")
	fatigueDelta := intField(chosen.TravelPatch, "fatigue_delta")
	dangerDelta := intField(chosen.TravelPatch, "danger_delta")

	e.state.Progress = clampInt(e.state.Progress+progressDelta, 0, maxInt(0, e.state.TotalDistance))
	e.state.Fatigue = clampInt(e.state.Fatigue+fatigueDelta, 0, 100)
	e.state.DangerLevel = clampInt(e.state.DangerLevel+dangerDelta, 0, 100)

	if suppliesRaw, ok := chosen.TravelPatch["supplies"].(map[string]any); ok {
		e.consumeSupplies(
			maxInt(0, intField(suppliesRaw, "food")),
			maxInt(0, intField(suppliesRaw, "water")),
			maxInt(0, intField(suppliesRaw, "torches")),
		)
	}

	if statusRaw, ok := chosen.TravelPatch["status"]; ok {
		status := cleanStatus(fmt.Sprintf("%v", statusRaw))
		if status == StatusTraveling || status == StatusCamping || status == StatusAborted {
			e.state.Status = status
		}
	}

	if e.state.TotalDistance > 0 && e.state.Progress >= e.state.TotalDistance {
		e.state.Status = StatusArrived
	}

	text := chosen.Text
	if text == "" {
		text = target
	}
	e.appendLog("choice", fmt.Sprintf("Choix route: %s", text))
	e.state.PendingEvent = nil

	if chosen.StatePatch == nil {
		return map[string]any{}
	}
	return chosen.StatePatch
}

// AbortTravel cancels the current leg and resets to idle, keeping one
// summary log entry.
func (e *Engine) AbortTravel() State {
	e.state = Normalize(e.state)
	if e.state.Status != StatusTraveling && e.state.Status != StatusCamping && e.state.Status != StatusArrived {
		return e.ExportState()
	}
	previous := e.state
	dest := previous.ToLocationID
	if dest == "" {
		dest = "destination inconnue"
	}
	e.state = Idle()
	e.state.Log = []LogEntry{{
		At:       intOrZero(previous.LastTickAt),
		Kind:     "aborted",
		Text:     cleanID(fmt.Sprintf("Trajet interrompu vers %s.", dest), 220),
		Progress: maxInt(0, previous.Progress),
	}}
	return e.ExportState()
}

// ReturnBack cancels the current leg and resets to idle, summarizing a
// return to the origin.
func (e *Engine) ReturnBack() State {
	e.state = Normalize(e.state)
	if e.state.Status != StatusTraveling && e.state.Status != StatusCamping {
		return e.ExportState()
	}
	previous := e.state
	origin := previous.FromLocationID
	if origin == "" {
		origin = "inconnu"
	}
	e.state = Idle()
	e.state.Log = []LogEntry{{
		At:       intOrZero(previous.LastTickAt),
		Kind:     "return",
		Text:     cleanID(fmt.Sprintf("Retour au point de depart (%s).", origin), 220),
		Progress: maxInt(0, previous.Progress),
	}}
	return e.ExportState()
}

// Arrive finalizes an arrived leg, producing the orchestrator patch, and
// resets to idle.
func (e *Engine) Arrive() map[string]any {
	e.state = Normalize(e.state)
	if e.state.Status != StatusArrived {
		return map[string]any{}
	}

	destination := cleanID(e.state.ToLocationID, 120)
	route := append([]string(nil), e.state.Route...)
	traveledDistance := e.state.TotalDistance
	fatigue := e.state.Fatigue
	supplies := e.state.SuppliesUsed
	e.appendLog("arrive", fmt.Sprintf("Arrivee sur %s", destination))

	e.state = Idle()
	e.state.Log = []LogEntry{{
		At:       0,
		Kind:     "summary",
		Text:     cleanID(fmt.Sprintf("Trajet termine (%du, fatigue %d, vivres %d/%d).", traveledDistance, fatigue, supplies.Food, supplies.Water), 220),
		Progress: traveledDistance,
	}}

	routePreview := route
	if len(routePreview) > 8 {
		routePreview = routePreview[:8]
	}

	return map[string]any{
		"location_id": destination,
		"flags": map[string]any{
			"travel_arrived":      true,
			"travel_last_distance": traveledDistance,
			"travel_last_route":   strings.Join(routePreview, " -> "),
		},
		"world": map[string]any{"time_passed": 8},
		"resources": map[string]any{
			"food_used":    maxInt(0, supplies.Food),
			"water_used":   maxInt(0, supplies.Water),
			"torches_used": maxInt(0, supplies.Torches),
		},
		"travel_summary": map[string]any{
			"distance":    traveledDistance,
			"fatigue":     fatigue,
			"destination": destination,
		},
	}
}

func (e *Engine) appendLog(kind, text string) {
	e.state.Log = append(e.state.Log, LogEntry{
		At:       intOrZero(e.state.LastTickAt),
		Kind:     cleanIDOrDefault(kind, 40, "info"),
		Text:     cleanID(text, 220),
		Progress: maxInt(0, e.state.Progress),
	})
	if len(e.state.Log) > 80 {
		e.state.Log = e.state.Log[len(e.state.Log)-80:]
	}
}

func (e *Engine) consumeSupplies(food, water, torches int) {
	e.state.SuppliesUsed.Food = maxInt(0, e.state.SuppliesUsed.Food+maxInt(0, food))
	e.state.SuppliesUsed.Water = maxInt(0, e.state.SuppliesUsed.Water+maxInt(0, water))
	e.state.SuppliesUsed.Torches = maxInt(0, e.state.SuppliesUsed.Torches+maxInt(0, torches))
}

func intPtr(v int) *int { return &v }

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return maxInt(0, *v)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func intField(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
