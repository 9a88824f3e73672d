package travel

import "fmt"

var eventOrder = []EventType{EventEncounter, EventHazard, EventDiscovery, EventAmbush, EventCamp}

func baseEventWeights() map[EventType]int {
	return map[EventType]int{
		EventEncounter: 24,
		EventHazard:    21,
		EventDiscovery: 21,
		EventAmbush:    20,
		EventCamp:      14,
	}
}

func (e *Engine) eventWeights(tension, instability int, timeOfDay string, bias map[string]int) map[EventType]int {
	weights := baseEventWeights()
	for eventType, v := range e.eventWeightOverrides {
		if v > 0 {
			weights[eventType] = v
		}
	}

	if tension >= 70 {
		weights[EventAmbush] += 8
		weights[EventEncounter] += 4
	}
	if instability >= 70 {
		weights[EventHazard] += 8
		weights[EventAmbush] += 5
		weights[EventDiscovery] = maxInt(1, weights[EventDiscovery]-4)
	}
	if nightLike(timeOfDay) {
		weights[EventAmbush] += 6
		weights[EventCamp] += 2
	}

	for key, deltaRaw := range bias {
		eventType, ok := cleanEventType(key)
		if !ok {
			continue
		}
		if _, known := weights[eventType]; !known {
			continue
		}
		deltaPct := clampInt(deltaRaw, -80, 180)
		base := maxInt(1, weights[eventType])
		weights[eventType] = maxInt(1, roundInt(float64(base)*(1.0+float64(deltaPct)/100.0)))
	}

	recent := e.state.RecentEventTypes
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}
	for _, r := range recent {
		if eventType, ok := cleanEventType(r); ok {
			if _, known := weights[eventType]; known {
				weights[eventType] = maxInt(1, roundInt(float64(weights[eventType])*0.35))
			}
		}
	}

	for k, v := range weights {
		weights[k] = maxInt(1, v)
	}
	return weights
}

func roundInt(v float64) int {
	if v >= 0 {
		return int(v + 0.5)
	}
	return -int(-v + 0.5)
}

func (e *Engine) pickEventType(tension, instability int, timeOfDay string, bias map[string]int) EventType {
	weights := e.eventWeights(tension, instability, timeOfDay, bias)
	total := 0
	for _, t := range eventOrder {
		total += maxInt(1, weights[t])
	}
	if total <= 0 {
		return EventEncounter
	}
	roll := e.rng.Float64() * float64(total)
	cursor := 0.0
	for _, t := range eventOrder {
		cursor += float64(maxInt(1, weights[t]))
		if roll <= cursor {
			return t
		}
	}
	return EventCamp
}

// maybeRouteEvent rolls for (or, when forced is non-nil, directly builds)
// a route event. Returns nil when no event triggers.
func (e *Engine) maybeRouteEvent(forced *EventType, tension, instability int, timeOfDay string, bias map[string]int) *Event {
	danger := e.state.DangerLevel
	fatigue := e.state.Fatigue

	var eventType EventType
	if forced != nil {
		eventType = *forced
	} else {
		triggerChance := 0.07 + float64(danger)/240.0 + float64(fatigue)/420.0
		if tension >= 70 {
			triggerChance += 0.06
		}
		if instability >= 70 {
			triggerChance += 0.06
		}
		if nightLike(timeOfDay) {
			triggerChance += 0.04
		}
		triggerChance = clampFloat(triggerChance, 0.02, 0.72)
		if e.rng.Float64() > triggerChance {
			return nil
		}
		eventType = e.pickEventType(tension, instability, timeOfDay, bias)
	}

	var event *Event
	switch eventType {
	case EventEncounter:
		event = e.eventEncounter()
	case EventAmbush:
		event = e.eventAmbush()
	case EventHazard:
		event = e.eventHazard()
	case EventDiscovery:
		event = e.eventDiscovery()
	case EventCamp:
		event = e.eventCamp()
	default:
		return nil
	}
	if event != nil {
		e.rememberEventType(event.Type)
	}
	return event
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Engine) rememberEventType(eventType string) {
	clean, ok := cleanEventType(eventType)
	if !ok {
		return
	}
	recent := normalizeRecentEventTypes(e.state.RecentEventTypes)
	if len(recent) > 0 && recent[len(recent)-1] == string(clean) {
		if len(recent) > 4 {
			recent = recent[len(recent)-4:]
		}
		e.state.RecentEventTypes = recent
		return
	}
	recent = append(recent, string(clean))
	if len(recent) > 4 {
		recent = recent[len(recent)-4:]
	}
	e.state.RecentEventTypes = normalizeRecentEventTypes(recent)
}

func (e *Engine) eventEncounter() *Event {
	return &Event{
		ID:        fmt.Sprintf("enc_%d", 1000+e.rng.Intn(9000)),
		Type:      string(EventEncounter),
		ShortText: "Une caravane armee bloque une partie du passage.",
		Interrupt: false,
		StatePatch: map[string]any{"flags": map[string]any{"travel_event_encounter": true}},
		Choices: []Choice{
			{
				ID: "negotiate", Text: "Negocier le passage", RiskTag: "moyen",
				EffectsHint: "Moins de danger, possible gain de reputation.",
				StatePatch:  map[string]any{"reputation": map[string]any{"Marchands": 1}, "flags": map[string]any{"travel_deal": true}},
				TravelPatch: map[string]any{"danger_delta": -5, "fatigue_delta": -1, "progress_delta": 2},
			},
			{
				ID: "rush", Text: "Forcer le passage", RiskTag: "eleve",
				EffectsHint: "Progression rapide mais usante.",
				StatePatch:  map[string]any{"player": map[string]any{"hp_delta": -1}, "flags": map[string]any{"travel_rush": true}},
				TravelPatch: map[string]any{"danger_delta": 7, "fatigue_delta": 5, "progress_delta": 5},
			},
			{
				ID: "trade", Text: "Payer pour passer", RiskTag: "faible",
				EffectsHint: "Moins de tension, coute de l'or.",
				StatePatch:  map[string]any{"player": map[string]any{"gold_delta": -8}, "flags": map[string]any{"travel_bribe": true}},
				TravelPatch: map[string]any{"danger_delta": -8, "progress_delta": 1},
			},
		},
	}
}

func (e *Engine) eventAmbush() *Event {
	return &Event{
		ID:        fmt.Sprintf("amb_%d", 1000+e.rng.Intn(9000)),
		Type:      string(EventAmbush),
		ShortText: "Des silhouettes surgissent des fourres: embuscade.",
		Interrupt: true,
		CombatSeed: map[string]any{"kind": "road_ambush", "threat": 1 + e.rng.Intn(4)},
		StatePatch: map[string]any{"flags": map[string]any{"travel_event_ambush": true}},
		Choices: []Choice{
			{
				ID: "fight", Text: "Tenir la ligne", RiskTag: "eleve",
				EffectsHint: "Blessures possibles, gagne du terrain.",
				StatePatch:  map[string]any{"player": map[string]any{"hp_delta": -4}, "reputation": map[string]any{"Habitants": 1}},
				TravelPatch: map[string]any{"progress_delta": 3, "fatigue_delta": 6, "danger_delta": 2},
			},
			{
				ID: "flee", Text: "Fuir vers un detour", RiskTag: "moyen",
				EffectsHint: "Evite le pire, perd du rythme.",
				StatePatch:  map[string]any{"flags": map[string]any{"travel_escape": true}},
				TravelPatch: map[string]any{"progress_delta": -4, "fatigue_delta": 5, "danger_delta": -3},
			},
			{
				ID: "surrender", Text: "Lacher des ressources", RiskTag: "faible",
				EffectsHint: "Tu passes, mais plus pauvre.",
				StatePatch:  map[string]any{"player": map[string]any{"gold_delta": -10}, "resources": map[string]any{"food": -1, "water": -1}},
				TravelPatch: map[string]any{"danger_delta": -10, "progress_delta": 1},
			},
		},
	}
}

func (e *Engine) eventHazard() *Event {
	return &Event{
		ID:        fmt.Sprintf("haz_%d", 1000+e.rng.Intn(9000)),
		Type:      string(EventHazard),
		ShortText: "Le chemin se fissure: pont casse et bourbiers.",
		Interrupt: true,
		StatePatch: map[string]any{"flags": map[string]any{"travel_event_hazard": true}},
		Choices: []Choice{
			{
				ID: "cross", Text: "Traverser vite", RiskTag: "eleve",
				EffectsHint: "Gain de temps, risque de blessure.",
				StatePatch:  map[string]any{"player": map[string]any{"hp_delta": -2}},
				TravelPatch: map[string]any{"progress_delta": 4, "fatigue_delta": 4, "danger_delta": 4},
			},
			{
				ID: "detour", Text: "Contourner la zone", RiskTag: "moyen",
				EffectsHint: "Plus lent, plus sur.",
				StatePatch:  map[string]any{"flags": map[string]any{"travel_safe_detour": true}},
				TravelPatch: map[string]any{"progress_delta": -2, "fatigue_delta": 2, "danger_delta": -8},
			},
			{
				ID: "camp", Text: "Camper et attendre", RiskTag: "faible",
				EffectsHint: "Recupere, mais consomme des vivres.",
				StatePatch:  map[string]any{"resources": map[string]any{"food": -1, "water": -1}},
				TravelPatch: map[string]any{"status": "camping", "fatigue_delta": -10, "danger_delta": -2},
			},
		},
	}
}

func (e *Engine) eventDiscovery() *Event {
	return &Event{
		ID:        fmt.Sprintf("dis_%d", 1000+e.rng.Intn(9000)),
		Type:      string(EventDiscovery),
		ShortText: "Des ruines discretes apparaissent au bord de la route.",
		Interrupt: false,
		StatePatch: map[string]any{"flags": map[string]any{"travel_event_discovery": true}},
		Choices: []Choice{
			{
				ID: "search", Text: "Fouiller rapidement", RiskTag: "moyen",
				EffectsHint: "Chance de gain, fatigue en hausse.",
				StatePatch:  map[string]any{"player": map[string]any{"gold_delta": 6}, "flags": map[string]any{"travel_loot_found": true}},
				TravelPatch: map[string]any{"progress_delta": -1, "fatigue_delta": 3},
			},
			{
				ID: "mark", Text: "Noter et repartir", RiskTag: "faible",
				EffectsHint: "Progression stable.",
				StatePatch:  map[string]any{"flags": map[string]any{"travel_discovery_marked": true}},
				TravelPatch: map[string]any{"progress_delta": 2, "danger_delta": -2},
			},
			{
				ID: "shortcut", Text: "Prendre le raccourci", RiskTag: "eleve",
				EffectsHint: "Grand gain ou mauvaise surprise.",
				StatePatch:  map[string]any{"player": map[string]any{"hp_delta": -1}, "flags": map[string]any{"travel_shortcut": true}},
				TravelPatch: map[string]any{"progress_delta": 7, "fatigue_delta": 4, "danger_delta": 6},
			},
		},
	}
}

func (e *Engine) eventCamp() *Event {
	return &Event{
		ID:        fmt.Sprintf("cmp_%d", 1000+e.rng.Intn(9000)),
		Type:      string(EventCamp),
		ShortText: "Le camp est monte, mais la nuit reste nerveuse.",
		Interrupt: false,
		StatePatch: map[string]any{"flags": map[string]any{"travel_event_camp": true}},
		Choices: []Choice{
			{
				ID: "rest", Text: "Dormir profondement", RiskTag: "moyen",
				EffectsHint: "Recupere beaucoup, possible incident.",
				StatePatch:  map[string]any{"player": map[string]any{"hp_delta": 2}},
				TravelPatch: map[string]any{"status": "camping", "fatigue_delta": -14, "danger_delta": 2},
			},
			{
				ID: "watch", Text: "Veiller a tour de role", RiskTag: "faible",
				EffectsHint: "Moins de repos, plus de securite.",
				StatePatch:  map[string]any{"flags": map[string]any{"travel_guarded_camp": true}},
				TravelPatch: map[string]any{"status": "camping", "fatigue_delta": -8, "danger_delta": -6},
			},
			{
				ID: "resume", Text: "Lever le camp", RiskTag: "moyen",
				EffectsHint: "Repart vite, fatigue moderee.",
				StatePatch:  map[string]any{},
				TravelPatch: map[string]any{"status": "traveling", "progress_delta": 2, "fatigue_delta": 2},
			},
		},
	}
}
