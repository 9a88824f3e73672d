// Package retrieval builds the four-stream context envelope (short, long,
// retrieved, combined) that the memory service hands back to a caller's
// prompt assembly: recent dialogue lines, structured long-memory facts,
// vector/lexical hits, and a deduplicated combined view, each scored and
// ranked the same way.
package retrieval

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"loreforge/internal/memmodel"
	"loreforge/internal/normalize"
	"loreforge/internal/vectorindex"
)

// Mode selects which memory the query runs against.
type Mode string

const (
	ModeNPC   Mode = "npc"
	ModeWorld Mode = "world"
	ModeBoth  Mode = "both"
)

// VectorHit is one precomputed vector-index match, signed cosine in
// [-1, 1] unless Remap rescales it.
type VectorHit struct {
	RecordID string
	Text     string
	Score    float64
}

// Candidate is one scored line before it is sorted into an envelope
// section.
type Candidate struct {
	Text       string
	VectorSim  float64
	TagsScore  float64
	Recency    float64
	Importance float64
	Score      float64
	Timestamp  time.Time
}

// Envelope is the four-stream retrieval result.
type Envelope struct {
	Short      []string
	Long       []string
	Retrieved  []string
	Combined   []string
}

// Limits bounds each section's length.
type Limits struct {
	Short     int
	Long      int
	Retrieved int
}

// Query carries everything the engine needs to score and assemble one
// retrieval call.
type Query struct {
	NPC    *memmodel.NPCMemory
	World  *memmodel.WorldMemory
	Text   string
	Mode   Mode
	Hits   []VectorHit
	Limits Limits
	Now    time.Time
	// Remap rescales a VectorHit.Score into [0,1]. Defaults to (x+1)/2,
	// the mapping for engines that return signed cosine similarity;
	// backends that already return values in [0,1] should supply the
	// identity function.
	Remap func(float64) float64
}

// HitsFromSearch converts vectorindex.SearchHit results (already-signed
// cosine similarity) into VectorHit candidates for a Query.
func HitsFromSearch(hits []vectorindex.SearchHit) []VectorHit {
	out := make([]VectorHit, len(hits))
	for i, h := range hits {
		out[i] = VectorHit{RecordID: h.RecordID, Text: h.Text, Score: h.Score}
	}
	return out
}

func defaultRemap(x float64) float64 {
	v := (x + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func tokenize(s string) map[string]struct{} {
	lower := strings.ToLower(s)
	tokens := make(map[string]struct{})
	var b strings.Builder
	flush := func() {
		if b.Len() >= 3 {
			tokens[b.String()] = struct{}{}
		}
		b.Reset()
	}
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func recencyScore(ts, now time.Time) float64 {
	if ts.IsZero() {
		return 0
	}
	ageHours := now.Sub(ts).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-ageHours / 240)
}

func score(vectorSim, tagsScore, recency, importance float64) float64 {
	return 0.6*vectorSim + 0.2*tagsScore + 0.1*recency + 0.1*importance
}

// Retrieve scores and assembles the four-stream envelope for q.
func Retrieve(q Query) Envelope {
	remap := q.Remap
	if remap == nil {
		remap = defaultRemap
	}
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	queryTokens := tokenize(q.Text)

	var shortLines []string
	var longCandidates []Candidate
	var retrievedCandidates []Candidate

	includeNPC := q.Mode == ModeNPC || q.Mode == ModeBoth
	includeWorld := q.Mode == ModeWorld || q.Mode == ModeBoth

	if includeNPC && q.NPC != nil {
		shortLines = append(shortLines, shortTurnLines(q.NPC.Short, q.Limits.Short)...)
		longCandidates = append(longCandidates, npcLongCandidates(q.NPC, queryTokens, now)...)
	}
	if includeWorld && q.World != nil {
		shortLines = append(shortLines, shortTurnLines(q.World.Short, q.Limits.Short)...)
		longCandidates = append(longCandidates, worldLongCandidates(q.World, queryTokens, now)...)
	}

	if len(q.Hits) > 0 {
		for _, h := range q.Hits {
			vectorSim := clamp01(remap(h.Score))
			tagsScore := jaccard(queryTokens, tokenize(h.Text))
			c := Candidate{
				Text:      h.Text,
				VectorSim: vectorSim,
				TagsScore: tagsScore,
				Recency:   1,
				Importance: 0.5,
			}
			c.Score = score(c.VectorSim, c.TagsScore, c.Recency, c.Importance)
			retrievedCandidates = append(retrievedCandidates, c)
		}
	} else {
		retrievedCandidates = append(retrievedCandidates, chunkFallbackCandidates(q, queryTokens, now)...)
	}

	sortDescending(longCandidates)
	sortDescending(retrievedCandidates)

	shortLimit := q.Limits.Short
	if shortLimit > 0 && len(shortLines) > shortLimit {
		shortLines = shortLines[len(shortLines)-shortLimit:]
	}

	longLines := candidateTexts(longCandidates, q.Limits.Long)
	retrievedLines := candidateTexts(retrievedCandidates, q.Limits.Retrieved)

	combined := dedupeLines(append(append(append([]string{}, shortLines...), longLines...), retrievedLines...))

	return Envelope{Short: shortLines, Long: longLines, Retrieved: retrievedLines, Combined: combined}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func shortTurnLines(turns []memmodel.ShortTurn, limit int) []string {
	start := 0
	if limit > 0 && len(turns) > limit {
		start = len(turns) - limit
	}
	out := make([]string, 0, len(turns)-start)
	for _, t := range turns[start:] {
		out = append(out, fmt.Sprintf("[short %s] %s", t.Timestamp.Format("2006-01-02"), t.Text))
	}
	return out
}

func sortDescending(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
}

func candidateTexts(candidates []Candidate, limit int) []string {
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Text
	}
	return out
}

func dedupeLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		key := normalize.ContentHash(l)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}

func scoreLine(text string, importance float64, ts, now time.Time, queryTokens map[string]struct{}) Candidate {
	tagsScore := jaccard(queryTokens, tokenize(text))
	recency := recencyScore(ts, now)
	c := Candidate{Text: text, VectorSim: 0, TagsScore: tagsScore, Recency: recency, Importance: importance, Timestamp: ts}
	c.Score = score(c.VectorSim, c.TagsScore, c.Recency, c.Importance)
	return c
}

func npcLongCandidates(mem *memmodel.NPCMemory, queryTokens map[string]struct{}, now time.Time) []Candidate {
	var out []Candidate
	for _, f := range mem.Long.Facts {
		out = append(out, scoreLine(fmt.Sprintf("[fact] %s", f.Text), f.Importance, f.Timestamp, now, queryTokens))
	}
	for _, e := range mem.Long.Events {
		out = append(out, scoreLine(fmt.Sprintf("[event %s] %s", e.Impact, e.Text), e.Importance, e.Timestamp, now, queryTokens))
	}
	for _, p := range mem.Long.Promises {
		out = append(out, scoreLine(fmt.Sprintf("[promise %s] %s", p.Status, p.Text), p.Importance, p.Timestamp, now, queryTokens))
	}
	for _, d := range mem.Long.Debts {
		out = append(out, scoreLine(fmt.Sprintf("[debt %s] %s", d.Status, d.Text), d.Importance, d.Timestamp, now, queryTokens))
	}
	return out
}

func worldLongCandidates(mem *memmodel.WorldMemory, queryTokens map[string]struct{}, now time.Time) []Candidate {
	var out []Candidate
	for _, f := range mem.Long.Facts {
		out = append(out, scoreLine(fmt.Sprintf("[world/fact] %s", f.Text), f.Importance, f.Timestamp, now, queryTokens))
	}
	for _, e := range mem.Long.Events {
		out = append(out, scoreLine(fmt.Sprintf("[world/event %s] %s", e.Impact, e.Text), e.Importance, e.Timestamp, now, queryTokens))
	}
	for _, p := range mem.Long.Promises {
		out = append(out, scoreLine(fmt.Sprintf("[world/promise %s] %s", p.Status, p.Text), p.Importance, p.Timestamp, now, queryTokens))
	}
	for _, d := range mem.Long.Debts {
		out = append(out, scoreLine(fmt.Sprintf("[world/debt %s] %s", d.Status, d.Text), d.Importance, d.Timestamp, now, queryTokens))
	}
	return out
}

// chunkFallbackCandidates is used when no vector hits were supplied: any
// chunk summary with positive lexical overlap with the query becomes a
// retrieved candidate.
func chunkFallbackCandidates(q Query, queryTokens map[string]struct{}, now time.Time) []Candidate {
	var out []Candidate
	consider := func(chunks []memmodel.Chunk, prefix string) {
		for _, c := range chunks {
			overlap := jaccard(queryTokens, tokenize(c.Summary))
			if overlap <= 0 {
				continue
			}
			text := fmt.Sprintf("%s%s", prefix, c.Summary)
			cand := Candidate{
				Text:      text,
				VectorSim: 0,
				TagsScore: overlap,
				Recency:   recencyScore(c.End, now),
				Importance: c.Importance,
				Timestamp: c.End,
			}
			cand.Score = score(cand.VectorSim, cand.TagsScore, cand.Recency, cand.Importance)
			out = append(out, cand)
		}
	}
	if (q.Mode == ModeNPC || q.Mode == ModeBoth) && q.NPC != nil {
		consider(q.NPC.Chunks, "[chunk] ")
	}
	if (q.Mode == ModeWorld || q.Mode == ModeBoth) && q.World != nil {
		consider(q.World.Chunks, "[world/chunk] ")
	}
	return out
}
