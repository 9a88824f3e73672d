package reputation

import (
	"strconv"
	"strings"
	"time"
)

// TradeContext carries the facts of a completed trade/charity action that
// ApplyTradeReputation needs to score it.
type TradeContext struct {
	Action         string
	Status         string
	QtyDone        int
	TargetIsBeggar bool
	NPCName        string
	NPCRole        string
	NPCLabel       string
	MapAnchor      string
}

func formatDelta(delta int) string {
	if delta >= 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

func formatLine(faction string, delta, score int) string {
	return faction + " " + formatDelta(delta) + " (" + strconv.Itoa(score) + ")"
}

// ApplyTradeReputation scores a completed trade/give action against the
// ledger and returns the human-readable adjustment lines (empty when the
// action's status wasn't "ok" or it scores nothing).
func ApplyTradeReputation(l *Ledger, now time.Time, ctx TradeContext, rules Rules) []string {
	if strings.ToLower(strings.TrimSpace(ctx.Status)) != "ok" {
		return nil
	}
	action := strings.ToLower(strings.TrimSpace(ctx.Action))
	qty := ctx.QtyDone
	if qty < 1 {
		qty = 1
	}

	var lines []string
	switch action {
	case "buy", "sell", "exchange":
		threshold := rules.Trade.MerchantLargeQtyThreshold
		if threshold < 1 {
			threshold = 1
		}
		delta := rules.Trade.MerchantDeltaSmall
		if qty > threshold {
			delta = rules.Trade.MerchantDeltaLarge
		}
		faction := rules.Trade.MerchantFaction
		score := l.Adjust(now, faction, delta, "transaction:"+action, "trade")
		lines = append(lines, formatLine(faction, delta, score))
	case "give":
		if ctx.TargetIsBeggar {
			threshold := rules.Trade.CharityLargeQtyThreshold
			if threshold < 1 {
				threshold = 1
			}
			delta := rules.Trade.CharityDeltaSmall
			if qty > threshold {
				delta = rules.Trade.CharityDeltaLarge
			}
			faction := rules.Trade.CharityFaction
			score := l.Adjust(now, faction, delta, "charite", "trade")
			lines = append(lines, formatLine(faction, delta, score))
		} else {
			delta := rules.Trade.GenericGiveDelta
			faction := InferNPCFaction(ctx.NPCName, ctx.NPCRole, ctx.NPCLabel, ctx.MapAnchor)
			score := l.Adjust(now, faction, delta, "don", "trade")
			lines = append(lines, formatLine(faction, delta, score))
		}
	}
	return lines
}

// QuestObjective names a quest's scoring category.
type QuestObjective struct {
	Type string
}

// Quest is the subset of quest state reputation scoring needs: status,
// objective, and the idempotency claim flags set after scoring.
type Quest struct {
	ID                      string
	Status                  string
	Objective               QuestObjective
	SourceNPCName           string
	ReputationClaimed       bool
	Branching               *Branching
	BranchReputationClaimed bool
}

// Branching is a quest's resolved branch choice, if it has one.
type Branching struct {
	SelectedOptionID string
	Options          []BranchOption
}

// BranchOption is one branch choice, carrying its per-faction deltas.
type BranchOption struct {
	ID         string
	Reputation map[string]int
}

// ApplyQuestCompletionReputation scores a newly completed quest exactly
// once: it no-ops on an already-claimed or non-completed quest, otherwise
// adjusts the objective's faction and sets ReputationClaimed.
func ApplyQuestCompletionReputation(l *Ledger, now time.Time, quest *Quest, rules Rules) []string {
	if quest == nil || quest.ReputationClaimed || quest.Status != "completed" {
		return nil
	}

	objective := strings.ToLower(strings.TrimSpace(quest.Objective.Type))
	delta := rules.Quest.DefaultDelta
	faction := rules.Quest.DefaultFaction
	if objective != "" {
		if d, ok := rules.Quest.ObjectiveDeltas[objective]; ok {
			delta = d
		}
		if f, ok := rules.Quest.ObjectiveFactions[objective]; ok {
			faction = f
		}
	}
	if npc := strings.TrimSpace(quest.SourceNPCName); npc != "" {
		faction = InferNPCFaction(npc, "", "", "")
	}

	reasonTag := objective
	if reasonTag == "" {
		reasonTag = "generic"
	}
	score := l.Adjust(now, faction, delta, "quest:"+reasonTag, "quest")
	quest.ReputationClaimed = true
	return []string{formatLine(faction, delta, score)}
}

// ApplyDungeonReputation scores a dungeon event by type (only the
// configured eligible types score anything), weighting boss kills and
// deep-floor clears above ordinary encounters.
func ApplyDungeonReputation(l *Ledger, now time.Time, floor int, eventType string, rules Rules) []string {
	kind := strings.ToLower(strings.TrimSpace(eventType))
	allowed := rules.Dungeon.EligibleEventTypes
	if len(allowed) == 0 {
		allowed = []string{"monster", "mimic", "boss"}
	}
	eligible := false
	for _, e := range allowed {
		if e == kind {
			eligible = true
			break
		}
	}
	if !eligible {
		return nil
	}

	delta := rules.Dungeon.DefaultDelta
	threshold := rules.Dungeon.HighFloorThreshold
	if threshold < 1 {
		threshold = 1
	}
	switch {
	case kind == "boss":
		delta = rules.Dungeon.BossDelta
	case floor >= threshold:
		delta = rules.Dungeon.HighFloorDelta
	}

	faction := rules.Dungeon.Faction
	score := l.Adjust(now, faction, delta, "dungeon:"+kind, "dungeon")
	return []string{formatLine(faction, delta, score)}
}

// ApplyQuestBranchReputation scores a completed quest's selected branch
// option exactly once: it no-ops on an already-claimed, non-completed, or
// branchless quest, otherwise adjusts every faction named in the
// selected option's reputation map and sets BranchReputationClaimed.
func ApplyQuestBranchReputation(l *Ledger, now time.Time, quest *Quest) []string {
	if quest == nil || quest.Status != "completed" || quest.BranchReputationClaimed {
		return nil
	}
	if quest.Branching == nil {
		quest.BranchReputationClaimed = true
		return nil
	}

	selectedID := strings.ToLower(strings.TrimSpace(quest.Branching.SelectedOptionID))
	var selected *BranchOption
	for i := range quest.Branching.Options {
		opt := &quest.Branching.Options[i]
		if strings.ToLower(strings.TrimSpace(opt.ID)) == selectedID {
			selected = opt
			break
		}
	}
	if selected == nil || len(selected.Reputation) == 0 {
		quest.BranchReputationClaimed = true
		return nil
	}

	var lines []string
	for faction, rawDelta := range selected.Reputation {
		delta := clampInt(rawDelta, AdjustMin, AdjustMax)
		if delta == 0 {
			continue
		}
		score := l.Adjust(now, faction, delta, "quest_branch:"+quest.ID, "quest_branch")
		lines = append(lines, formatLine(faction, delta, score))
	}
	quest.BranchReputationClaimed = true
	return lines
}
