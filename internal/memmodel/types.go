// Package memmodel defines the typed entities that make up the narrative
// memory record: short turns, long-memory facts/events/promises/debts,
// chunks, relationships, and the NPC/world memory containers around them.
// Every constructor clamps numeric fields, cleans text fields, deduplicates
// tags, and falls back to the first declared enum variant on an unknown
// value, per the validation contract each entity must uphold.
package memmodel

import (
	"time"

	"github.com/google/uuid"

	"loreforge/internal/normalize"
)

// Role identifies who produced a short turn.
type Role string

// Declared Role variants; Player is the fallback for unknown values.
const (
	RolePlayer    Role = "player"
	RoleNPC       Role = "npc"
	RoleSystem    Role = "system"
	RoleNarration Role = "narration"
)

func validRole(r Role) Role {
	switch r {
	case RolePlayer, RoleNPC, RoleSystem, RoleNarration:
		return r
	default:
		return RolePlayer
	}
}

// Impact grades an Event's significance.
type Impact string

const (
	ImpactLow  Impact = "low"
	ImpactMed  Impact = "med"
	ImpactHigh Impact = "high"
)

func validImpact(i Impact) Impact {
	switch i {
	case ImpactLow, ImpactMed, ImpactHigh:
		return i
	default:
		return ImpactLow
	}
}

// PromiseStatus tracks a Promise's lifecycle.
type PromiseStatus string

const (
	PromiseOpen   PromiseStatus = "open"
	PromiseKept   PromiseStatus = "kept"
	PromiseBroken PromiseStatus = "broken"
)

func validPromiseStatus(s PromiseStatus) PromiseStatus {
	switch s {
	case PromiseOpen, PromiseKept, PromiseBroken:
		return s
	default:
		return PromiseOpen
	}
}

// DebtStatus tracks a Debt's lifecycle.
type DebtStatus string

const (
	DebtOpen DebtStatus = "open"
	DebtPaid DebtStatus = "paid"
)

func validDebtStatus(s DebtStatus) DebtStatus {
	switch s {
	case DebtOpen, DebtPaid:
		return s
	default:
		return DebtOpen
	}
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

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NewTurnID returns a fresh opaque turn identifier.
func NewTurnID() string {
	return uuid.NewString()
}

// ShortTurn is one dialogue exchange before compaction.
type ShortTurn struct {
	Timestamp time.Time `json:"ts"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags"`
	Importance float64  `json:"importance"`
	TurnID    string    `json:"turn_id"`
}

// NewShortTurn validates and constructs a ShortTurn. Returns false when the
// cleaned text is empty (callers must not persist an empty short turn).
func NewShortTurn(ts time.Time, role Role, text string, tags []string, importance float64, turnID string) (ShortTurn, bool) {
	cleanText := normalize.CleanText(text, 460)
	if cleanText == "" {
		return ShortTurn{}, false
	}
	if turnID == "" {
		turnID = NewTurnID()
	}
	return ShortTurn{
		Timestamp:  ts,
		Role:       validRole(role),
		Text:       cleanText,
		Tags:       normalize.DedupeTags(tags, 24),
		Importance: clampFloat(importance, 0, 1),
		TurnID:     turnID,
	}, true
}

// LongMemoryItem is the shared shape of Fact/Event/Promise/Debt for the
// purposes of content-hash dedup and cap truncation.
type LongMemoryItem interface {
	Hash() string
	When() time.Time
}

// Fact is a piece of durable knowledge with a confidence level.
type Fact struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"ts"`
	Text       string    `json:"text"`
	Tags       []string  `json:"tags"`
	Importance float64   `json:"importance"`
	ContentHash string   `json:"content_hash"`
	Confidence float64   `json:"confidence"`
}

func (f Fact) Hash() string      { return f.ContentHash }
func (f Fact) When() time.Time   { return f.Timestamp }

// NewFact validates and constructs a Fact. Returns false on empty text.
func NewFact(ts time.Time, text string, tags []string, importance, confidence float64) (Fact, bool) {
	clean := normalize.CleanText(text, 420)
	if clean == "" {
		return Fact{}, false
	}
	return Fact{
		ID:          uuid.NewString(),
		Timestamp:   ts,
		Text:        clean,
		Tags:        normalize.DedupeTags(tags, 24),
		Importance:  clampFloat(importance, 0, 1),
		ContentHash: normalize.ContentHash(clean),
		Confidence:  clampFloat(confidence, 0, 1),
	}, true
}

// Event is a notable occurrence graded by Impact.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"ts"`
	Text        string    `json:"text"`
	Tags        []string  `json:"tags"`
	Importance  float64   `json:"importance"`
	ContentHash string    `json:"content_hash"`
	Impact      Impact    `json:"impact"`
}

func (e Event) Hash() string    { return e.ContentHash }
func (e Event) When() time.Time { return e.Timestamp }

// NewEvent validates and constructs an Event. Returns false on empty text.
func NewEvent(ts time.Time, text string, tags []string, importance float64, impact Impact) (Event, bool) {
	clean := normalize.CleanText(text, 420)
	if clean == "" {
		return Event{}, false
	}
	return Event{
		ID:          uuid.NewString(),
		Timestamp:   ts,
		Text:        clean,
		Tags:        normalize.DedupeTags(tags, 24),
		Importance:  clampFloat(importance, 0, 1),
		ContentHash: normalize.ContentHash(clean),
		Impact:      validImpact(impact),
	}, true
}

// Promise is a commitment tracked to completion.
type Promise struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"ts"`
	Text        string        `json:"text"`
	Tags        []string      `json:"tags"`
	Importance  float64       `json:"importance"`
	ContentHash string        `json:"content_hash"`
	Status      PromiseStatus `json:"status"`
}

func (p Promise) Hash() string    { return p.ContentHash }
func (p Promise) When() time.Time { return p.Timestamp }

// NewPromise validates and constructs a Promise. Returns false on empty text.
func NewPromise(ts time.Time, text string, tags []string, importance float64, status PromiseStatus) (Promise, bool) {
	clean := normalize.CleanText(text, 420)
	if clean == "" {
		return Promise{}, false
	}
	return Promise{
		ID:          uuid.NewString(),
		Timestamp:   ts,
		Text:        clean,
		Tags:        normalize.DedupeTags(tags, 24),
		Importance:  clampFloat(importance, 0, 1),
		ContentHash: normalize.ContentHash(clean),
		Status:      validPromiseStatus(status),
	}, true
}

// Debt is an obligation owed by or to the player.
type Debt struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"ts"`
	Text        string     `json:"text"`
	Tags        []string   `json:"tags"`
	Importance  float64    `json:"importance"`
	ContentHash string     `json:"content_hash"`
	Status      DebtStatus `json:"status"`
}

func (d Debt) Hash() string    { return d.ContentHash }
func (d Debt) When() time.Time { return d.Timestamp }

// NewDebt validates and constructs a Debt. Returns false on empty text.
func NewDebt(ts time.Time, text string, tags []string, importance float64, status DebtStatus) (Debt, bool) {
	clean := normalize.CleanText(text, 420)
	if clean == "" {
		return Debt{}, false
	}
	return Debt{
		ID:          uuid.NewString(),
		Timestamp:   ts,
		Text:        clean,
		Tags:        normalize.DedupeTags(tags, 24),
		Importance:  clampFloat(importance, 0, 1),
		ContentHash: normalize.ContentHash(clean),
		Status:      validDebtStatus(status),
	}, true
}

// Chunk is a compacted summary of a contiguous slice of short turns.
type Chunk struct {
	ID              string    `json:"id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	ContributingIDs []string  `json:"contributing_turn_ids"`
	Summary         string    `json:"summary"`
	Tags            []string  `json:"tags"`
	Importance      float64   `json:"importance"`
	ContentHash     string    `json:"content_hash"`
}

// NewChunk validates and constructs a Chunk. Returns false on empty summary.
func NewChunk(start, end time.Time, turnIDs []string, summary string, tags []string, importance float64) (Chunk, bool) {
	clean := normalize.CleanText(summary, 1000)
	if clean == "" {
		return Chunk{}, false
	}
	if len(tags) == 0 {
		tags = []string{"general"}
	}
	return Chunk{
		ID:              uuid.NewString(),
		Start:           start,
		End:             end,
		ContributingIDs: dedupeStrings(turnIDs),
		Summary:         clean,
		Tags:            normalize.DedupeTags(tags, 8),
		Importance:      clampFloat(importance, 0.15, 1.0),
		ContentHash:     normalize.ContentHash(clean),
	}, true
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// RelationshipNote is one dated entry in a Relationship's note history.
type RelationshipNote struct {
	Timestamp time.Time `json:"ts"`
	Text      string    `json:"text"`
}

// Relationship tracks the player's standing with one NPC.
type Relationship struct {
	Affinity float64            `json:"affinity"`
	Notes    []RelationshipNote `json:"notes"`
}

// MaxRelationshipNotes bounds the Relationship.Notes list.
const MaxRelationshipNotes = 300

// AdjustAffinity clamps the new affinity into [-100, 100].
func (r *Relationship) AdjustAffinity(delta float64) {
	r.Affinity = clampFloat(r.Affinity+delta, -100, 100)
}

// AddNote appends a cleaned, dated note and truncates to the newest
// MaxRelationshipNotes entries.
func (r *Relationship) AddNote(ts time.Time, text string) {
	clean := normalize.CleanText(text, 420)
	if clean == "" {
		return
	}
	r.Notes = append(r.Notes, RelationshipNote{Timestamp: ts, Text: clean})
	if len(r.Notes) > MaxRelationshipNotes {
		r.Notes = r.Notes[len(r.Notes)-MaxRelationshipNotes:]
	}
}

// Bounded capacities (spec §3 invariants). Truncation always keeps the
// newest items.
const (
	MaxFacts    = 500
	MaxEvents   = 500
	MaxPromises = 100
	MaxDebts    = 100
	MaxChunks   = 2000
)

// LongMemory holds the structured, capped memory lists plus the rolling
// summary and relationship.
type LongMemory struct {
	Facts        []Fact       `json:"facts"`
	Events       []Event      `json:"events"`
	Promises     []Promise    `json:"promises"`
	Debts        []Debt       `json:"debts"`
	Relationship Relationship `json:"relationships_player"`
	SummaryText  string       `json:"summary_text"`
	SummaryTS    time.Time    `json:"summary_ts"`
}

func truncateKeepNewest[T any](items []T, max int) []T {
	if len(items) <= max {
		return items
	}
	return items[len(items)-max:]
}

func hasHash[T LongMemoryItem](items []T, hash string) bool {
	for _, item := range items {
		if item.Hash() == hash {
			return true
		}
	}
	return false
}

// AddFact appends f iff no existing fact shares its content hash, then
// truncates the list to MaxFacts keeping the newest entries.
func (l *LongMemory) AddFact(f Fact) bool {
	if hasHash(l.Facts, f.ContentHash) {
		return false
	}
	l.Facts = append(l.Facts, f)
	l.Facts = truncateKeepNewest(l.Facts, MaxFacts)
	return true
}

// AddEvent appends e iff no existing event shares its content hash, then
// truncates the list to MaxEvents keeping the newest entries.
func (l *LongMemory) AddEvent(e Event) bool {
	if hasHash(l.Events, e.ContentHash) {
		return false
	}
	l.Events = append(l.Events, e)
	l.Events = truncateKeepNewest(l.Events, MaxEvents)
	return true
}

// AddPromise appends p iff no existing promise shares its content hash,
// then truncates the list to MaxPromises keeping the newest entries.
func (l *LongMemory) AddPromise(p Promise) bool {
	if hasHash(l.Promises, p.ContentHash) {
		return false
	}
	l.Promises = append(l.Promises, p)
	l.Promises = truncateKeepNewest(l.Promises, MaxPromises)
	return true
}

// AddDebt appends d iff no existing debt shares its content hash, then
// truncates the list to MaxDebts keeping the newest entries.
func (l *LongMemory) AddDebt(d Debt) bool {
	if hasHash(l.Debts, d.ContentHash) {
		return false
	}
	l.Debts = append(l.Debts, d)
	l.Debts = truncateKeepNewest(l.Debts, MaxDebts)
	return true
}

// SetSummary overwrites the rolling summary text and timestamp.
func (l *LongMemory) SetSummary(ts time.Time, text string) {
	l.SummaryText = normalize.CleanText(text, 1200)
	l.SummaryTS = ts
}

// Stats holds compaction tuning parameters for one memory scope.
type Stats struct {
	ShortMax          int       `json:"short_max"`
	ChunkTargetTurns  int       `json:"chunk_target_turns"`
	LastCompactTS     time.Time `json:"last_compact_ts"`
}

// DefaultStats returns the spec-compliant defaults (short_max=80,
// chunk_target_turns=20), both well inside their clamped ranges.
func DefaultStats() Stats {
	return Stats{ShortMax: 80, ChunkTargetTurns: 20}
}

// Normalize clamps ShortMax into [20,240] and ChunkTargetTurns into
// [10,120].
func (s *Stats) Normalize() {
	s.ShortMax = clampInt(s.ShortMax, 20, 240)
	s.ChunkTargetTurns = clampInt(s.ChunkTargetTurns, 10, 120)
}

// SchemaVersion is the current on-disk schema version for NPC/world memory.
const SchemaVersion = 1

// NPCMemory is the full persisted memory for one (profile, npc) pair.
type NPCMemory struct {
	SchemaVersion int         `json:"schema_version"`
	ScopedID      string      `json:"npc_id"`
	Short         []ShortTurn `json:"short"`
	Long          LongMemory  `json:"long"`
	Chunks        []Chunk     `json:"chunks"`
	Stats         Stats       `json:"stats"`
}

// ShortTurns returns the pending short-turn buffer.
func (m *NPCMemory) ShortTurns() []ShortTurn { return m.Short }

// SetShortTurns replaces the pending short-turn buffer.
func (m *NPCMemory) SetShortTurns(s []ShortTurn) { m.Short = s }

// LongRef returns a pointer to the long-term memory for in-place mutation.
func (m *NPCMemory) LongRef() *LongMemory { return &m.Long }

// StatsRef returns a pointer to the compaction tuning stats.
func (m *NPCMemory) StatsRef() *Stats { return &m.Stats }

// NewNPCMemory returns a fresh, default NPC memory for the given scoped id.
func NewNPCMemory(scopedID string) *NPCMemory {
	return &NPCMemory{
		SchemaVersion: SchemaVersion,
		ScopedID:      scopedID,
		Stats:         DefaultStats(),
	}
}

// AddChunk appends c iff no existing chunk shares its content hash, then
// truncates to MaxChunks keeping the newest entries.
func (m *NPCMemory) AddChunk(c Chunk) bool {
	for _, existing := range m.Chunks {
		if existing.ContentHash == c.ContentHash {
			return false
		}
	}
	m.Chunks = append(m.Chunks, c)
	if len(m.Chunks) > MaxChunks {
		m.Chunks = m.Chunks[len(m.Chunks)-MaxChunks:]
	}
	return true
}

// MaxDiscoveredLocations bounds WorldMemory.DiscoveredLocations.
const MaxDiscoveredLocations = 1200

// WorldMemory is the singleton world-scoped analogue of NPCMemory.
type WorldMemory struct {
	SchemaVersion       int             `json:"schema_version"`
	Short               []ShortTurn     `json:"short"`
	Long                LongMemory      `json:"long"`
	Chunks              []Chunk         `json:"chunks"`
	Stats               Stats           `json:"stats"`
	WorldFlags          map[string]bool `json:"world_flags"`
	DiscoveredLocations []string        `json:"discovered_locations"`
}

// ShortTurns returns the pending short-turn buffer.
func (w *WorldMemory) ShortTurns() []ShortTurn { return w.Short }

// SetShortTurns replaces the pending short-turn buffer.
func (w *WorldMemory) SetShortTurns(s []ShortTurn) { w.Short = s }

// LongRef returns a pointer to the long-term memory for in-place mutation.
func (w *WorldMemory) LongRef() *LongMemory { return &w.Long }

// StatsRef returns a pointer to the compaction tuning stats.
func (w *WorldMemory) StatsRef() *Stats { return &w.Stats }

// NewWorldMemory returns a fresh, default world memory.
func NewWorldMemory() *WorldMemory {
	return &WorldMemory{
		SchemaVersion: SchemaVersion,
		Stats:         DefaultStats(),
		WorldFlags:    make(map[string]bool),
	}
}

// AddChunk appends c iff no existing chunk shares its content hash, then
// truncates to MaxChunks keeping the newest entries.
func (w *WorldMemory) AddChunk(c Chunk) bool {
	for _, existing := range w.Chunks {
		if existing.ContentHash == c.ContentHash {
			return false
		}
	}
	w.Chunks = append(w.Chunks, c)
	if len(w.Chunks) > MaxChunks {
		w.Chunks = w.Chunks[len(w.Chunks)-MaxChunks:]
	}
	return true
}

// AddDiscoveredLocation appends id iff not already present, then truncates
// to MaxDiscoveredLocations keeping the newest entries.
func (w *WorldMemory) AddDiscoveredLocation(id string) bool {
	id = normalize.SanitizeID(id)
	for _, existing := range w.DiscoveredLocations {
		if existing == id {
			return false
		}
	}
	w.DiscoveredLocations = append(w.DiscoveredLocations, id)
	if len(w.DiscoveredLocations) > MaxDiscoveredLocations {
		w.DiscoveredLocations = w.DiscoveredLocations[len(w.DiscoveredLocations)-MaxDiscoveredLocations:]
	}
	return true
}
