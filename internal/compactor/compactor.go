// Package compactor turns an overflowing short-turn buffer into structured
// long-term memory: a summarizing chunk, deduplicated facts/events/
// promises/debts, a relationship nudge, and a rolling summary. An AI
// planner may be registered to produce the patch; any failure or
// non-conforming response falls back to a deterministic, rule-based
// extractor so compaction never blocks on an external call.
package compactor

import (
	"context"
	"strings"

	"loreforge/internal/memmodel"
	"loreforge/internal/obslog"
)

// Target is satisfied by *memmodel.NPCMemory and *memmodel.WorldMemory:
// both expose the same short/long/chunks/stats shape, so one Compact
// implementation serves both NPC and world compaction identically.
type Target interface {
	ShortTurns() []memmodel.ShortTurn
	SetShortTurns([]memmodel.ShortTurn)
	LongRef() *memmodel.LongMemory
	AddChunk(memmodel.Chunk) bool
	StatsRef() *memmodel.Stats
}

// Patch is the AI planner's (or fallback extractor's) output for one slice
// of short turns, mirroring the compaction planner I/O schema.
type Patch struct {
	ChunkSummary      string
	ChunkTags         []string
	ChunkImportance   float64
	Facts             []PatchFact
	Events            []PatchEvent
	Promises          []PatchPromise
	Debts             []PatchDebt
	AffinityDelta     float64
	RelationshipNotes []string
	Summary           string
}

// PatchFact is one fact extracted from a compacted slice.
type PatchFact struct {
	Text       string
	Tags       []string
	Importance float64
	Confidence float64
}

// PatchEvent is one event extracted from a compacted slice.
type PatchEvent struct {
	Text       string
	Tags       []string
	Importance float64
	Impact     memmodel.Impact
}

// PatchPromise is one promise extracted from a compacted slice.
type PatchPromise struct {
	Text       string
	Tags       []string
	Importance float64
	Status     memmodel.PromiseStatus
}

// PatchDebt is one debt extracted from a compacted slice.
type PatchDebt struct {
	Text       string
	Tags       []string
	Importance float64
	Status     memmodel.DebtStatus
}

// Planner is the optional AI collaborator that extracts a Patch from a
// slice of turns. A nil Planner, a returned error, or a patch with an
// empty summary all fall back to the deterministic extractor.
type Planner interface {
	Plan(ctx context.Context, turns []memmodel.ShortTurn) (*Patch, error)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Compact drives one compaction pass against target. It does nothing
// unless the short buffer exceeds short_max; then, while it does, the
// leading chunk_target_turns slice is processed and removed. After the
// loop, if the buffer is still longer than short_max - chunk_target_turns,
// it is trimmed to that retention target, keeping the newest turns.
// Returns whether anything changed.
func Compact(ctx context.Context, target Target, planner Planner) bool {
	stats := target.StatsRef()
	changed := false
	if len(target.ShortTurns()) <= stats.ShortMax {
		return false
	}

	for len(target.ShortTurns()) > stats.ShortMax {
		slice := target.ShortTurns()
		n := stats.ChunkTargetTurns
		if n > len(slice) {
			n = len(slice)
		}
		if n == 0 {
			break
		}
		processSlice(ctx, target, slice[:n], planner)
		remaining := append([]memmodel.ShortTurn(nil), slice[n:]...)
		target.SetShortTurns(remaining)
		changed = true
	}

	retention := stats.ShortMax - stats.ChunkTargetTurns
	if retention < 0 {
		retention = 0
	}
	if remaining := target.ShortTurns(); len(remaining) > retention {
		trimmed := append([]memmodel.ShortTurn(nil), remaining[len(remaining)-retention:]...)
		target.SetShortTurns(trimmed)
		changed = true
	}

	return changed
}

func processSlice(ctx context.Context, target Target, turns []memmodel.ShortTurn, planner Planner) {
	patch := planFromAI(ctx, turns, planner)
	if patch == nil {
		patch = fallbackExtract(turns)
	}

	start := turns[0].Timestamp
	end := turns[len(turns)-1].Timestamp
	turnIDs := make([]string, 0, len(turns))
	for _, t := range turns {
		turnIDs = append(turnIDs, t.TurnID)
	}

	if chunk, ok := memmodel.NewChunk(start, end, turnIDs, patch.ChunkSummary, patch.ChunkTags, patch.ChunkImportance); ok {
		if target.AddChunk(chunk) {
			obslog.CompactorDebug("chunk emitted: %s (%d contributing turns)", chunk.ID, len(chunk.ContributingIDs))
		}
	}

	long := target.LongRef()
	for _, f := range patch.Facts {
		if fact, ok := memmodel.NewFact(end, f.Text, f.Tags, f.Importance, f.Confidence); ok {
			long.AddFact(fact)
		}
	}
	for _, e := range patch.Events {
		if ev, ok := memmodel.NewEvent(end, e.Text, e.Tags, e.Importance, e.Impact); ok {
			long.AddEvent(ev)
		}
	}
	for _, p := range patch.Promises {
		if pr, ok := memmodel.NewPromise(end, p.Text, p.Tags, p.Importance, p.Status); ok {
			long.AddPromise(pr)
		}
	}
	for _, d := range patch.Debts {
		if dt, ok := memmodel.NewDebt(end, d.Text, d.Tags, d.Importance, d.Status); ok {
			long.AddDebt(dt)
		}
	}

	long.Relationship.AdjustAffinity(patch.AffinityDelta)
	notes := patch.RelationshipNotes
	if len(notes) > 4 {
		notes = notes[:4]
	}
	for _, note := range notes {
		long.Relationship.AddNote(end, note)
	}

	if patch.Summary != "" {
		long.SetSummary(end, patch.Summary)
	}
}

func planFromAI(ctx context.Context, turns []memmodel.ShortTurn, planner Planner) *Patch {
	if planner == nil {
		return nil
	}
	patch, err := planner.Plan(ctx, turns)
	if err != nil {
		obslog.CompactorDebug("ai planner failed, falling back to rule-based extractor: %v", err)
		return nil
	}
	if patch == nil || strings.TrimSpace(patch.ChunkSummary) == "" {
		obslog.CompactorDebug("ai planner returned a non-conforming patch, falling back to rule-based extractor")
		return nil
	}
	return patch
}

// TurnsPayload renders turns into the request shape a Planner would send an
// external AI service, for callers that need to construct that payload
// themselves (e.g. a planner implementation backed by an HTTP call).
func TurnsPayload(turns []memmodel.ShortTurn) []map[string]interface{} {
	out := make([]map[string]interface{}, len(turns))
	for i, t := range turns {
		out[i] = map[string]interface{}{
			"ts":         t.Timestamp,
			"role":       string(t.Role),
			"text":       t.Text,
			"tags":       t.Tags,
			"importance": t.Importance,
			"turn_id":    t.TurnID,
		}
	}
	return out
}
