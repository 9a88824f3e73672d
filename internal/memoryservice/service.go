// Package memoryservice orchestrates the memory data model, store,
// embedding provider, vector index, compactor, and retrieval engine into
// the operations a caller actually drives: appending dialogue, remembering
// system events, rebuilding vector indexes, and retrieving a scored
// context envelope.
package memoryservice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"loreforge/internal/compactor"
	"loreforge/internal/embedding"
	"loreforge/internal/memmodel"
	"loreforge/internal/memstore"
	"loreforge/internal/normalize"
	"loreforge/internal/obslog"
	"loreforge/internal/retrieval"
	"loreforge/internal/vectorindex"

	"golang.org/x/sync/errgroup"
)

// Service wires together every memory subsystem for one process.
type Service struct {
	store   *memstore.Store
	embed   *embedding.Provider
	planner compactor.Planner

	indexMu     sync.Mutex
	npcIndexes  map[string]*vectorindex.Index
	worldIndex  *vectorindex.Index
	nativeMaker func() vectorindex.NativeEngine
}

// NewService wires store, embed, and planner into a Service. planner may be
// nil, in which case compaction always uses the deterministic fallback.
// nativeMaker, if non-nil, is called once per scope to obtain a fresh
// NativeEngine for that scope's index; nil means brute-force-only search.
func NewService(store *memstore.Store, embed *embedding.Provider, planner compactor.Planner, nativeMaker func() vectorindex.NativeEngine) *Service {
	return &Service{
		store:       store,
		embed:       embed,
		planner:     planner,
		npcIndexes:  make(map[string]*vectorindex.Index),
		nativeMaker: nativeMaker,
	}
}

// ScopeKey derives the scoped NPC id `sanitize(profile)__sanitize(npcID)`.
func ScopeKey(profile, npcID string) string {
	p := "default"
	if strings.TrimSpace(profile) != "" {
		p = normalize.SanitizeID(profile)
	}
	n := normalize.SanitizeID(npcID)
	if n == "" {
		n = "unknown"
	}
	return p + "__" + n
}

func roleTags(role memmodel.Role) []string {
	switch role {
	case memmodel.RolePlayer:
		return []string{"player"}
	case memmodel.RoleSystem:
		return []string{"system"}
	case memmodel.RoleNarration:
		return []string{"narration"}
	default:
		return []string{"npc"}
	}
}

func mergeTags(provided []string, role memmodel.Role, text string) []string {
	merged := append([]string{}, provided...)
	merged = append(merged, roleTags(role)...)
	merged = append(merged, tagsFromKeywordText(text)...)
	return normalize.DedupeTags(merged, 24)
}

// LoadNPC loads the NPC memory for profile/npcID, assigning ScopedID if
// the document was just created with none.
func (s *Service) LoadNPC(profile, npcID string) (*memmodel.NPCMemory, error) {
	scoped := ScopeKey(profile, npcID)
	mem, err := s.store.LoadNPC(scoped)
	if err != nil {
		return nil, err
	}
	if mem.ScopedID == "" {
		mem.ScopedID = scoped
	}
	return mem, nil
}

// LoadWorld loads the singleton world memory.
func (s *Service) LoadWorld() (*memmodel.WorldMemory, error) {
	return s.store.LoadWorld()
}

// AppendShort appends one short turn to the NPC's scope, running
// compaction and, if it changed anything, rebuilding the NPC's vector
// index. Returns false (without mutating anything) if text cleans to
// empty.
func (s *Service) AppendShort(ctx context.Context, profile, npcID string, role memmodel.Role, text string, tags []string, importance float64, turnID string) (bool, error) {
	mem, err := s.LoadNPC(profile, npcID)
	if err != nil {
		return false, err
	}
	turn, ok := memmodel.NewShortTurn(time.Now(), role, text, mergeTags(tags, role, text), importance, turnID)
	if !ok {
		return false, nil
	}
	mem.Short = append(mem.Short, turn)

	changed := compactor.Compact(ctx, mem, s.planner)
	if err := s.store.SaveNPC(mem); err != nil {
		return false, err
	}
	if changed {
		if _, err := s.RebuildNPCIndex(ctx, profile, npcID); err != nil {
			obslog.MemoryWarn("rebuild npc index after compaction failed scope=%s: %v", mem.ScopedID, err)
		}
	}
	return true, nil
}

// AppendWorldShort is AppendShort's world-scope analogue.
func (s *Service) AppendWorldShort(ctx context.Context, role memmodel.Role, text string, tags []string, importance float64, turnID string) (bool, error) {
	mem, err := s.LoadWorld()
	if err != nil {
		return false, err
	}
	turn, ok := memmodel.NewShortTurn(time.Now(), role, text, mergeTags(tags, role, text), importance, turnID)
	if !ok {
		return false, nil
	}
	mem.Short = append(mem.Short, turn)

	changed := compactor.Compact(ctx, mem, s.planner)
	if err := s.store.SaveWorld(mem); err != nil {
		return false, err
	}
	if changed {
		if _, err := s.RebuildWorldIndex(ctx); err != nil {
			obslog.MemoryWarn("rebuild world index after compaction failed: %v", err)
		}
	}
	return true, nil
}

// RememberDialogueTurn appends the player's line then the NPC's reply,
// sharing one turn id so both halves of the exchange can be correlated.
func (s *Service) RememberDialogueTurn(ctx context.Context, profile, npcID, playerText, npcReply string, sceneTitle string) error {
	turnID := memmodel.NewTurnID()
	var tags []string
	if sceneTitle != "" {
		tags = []string{normalize.CleanTag(sceneTitle, 48)}
	}
	if strings.TrimSpace(playerText) != "" {
		if _, err := s.AppendShort(ctx, profile, npcID, memmodel.RolePlayer, playerText, tags, 0.5, turnID); err != nil {
			return err
		}
	}
	if strings.TrimSpace(npcReply) != "" {
		if _, err := s.AppendShort(ctx, profile, npcID, memmodel.RoleNPC, npcReply, tags, 0.48, turnID); err != nil {
			return err
		}
	}
	return nil
}

// RememberSystemEvent dispatches text into a promise, debt, event, or fact
// depending on kind and keyword-derived tags, and mirrors it into the
// world memory as a med-impact event. Deduplicated by content hash (the
// memmodel Add* methods already refuse a repeated hash).
func (s *Service) RememberSystemEvent(ctx context.Context, profile, npcID, kind, text string, importance float64) error {
	clean := normalize.CleanText(text, 420)
	if clean == "" {
		return nil
	}
	tags := normalize.DedupeTags(append([]string{kind}, tagsFromKeywordText(clean)...), 12)
	hasTag := func(name string) bool {
		for _, t := range tags {
			if t == name {
				return true
			}
		}
		return false
	}

	if npcID != "" {
		mem, err := s.LoadNPC(profile, npcID)
		if err != nil {
			return err
		}
		ts := time.Now()
		added := false
		switch {
		case kind == "promise" || hasTag("promise"):
			if p, ok := memmodel.NewPromise(ts, clean, tags, clampImportance(importance, 0.7), memmodel.PromiseOpen); ok {
				added = mem.Long.AddPromise(p)
			}
		case kind == "debt" || hasTag("debt"):
			if d, ok := memmodel.NewDebt(ts, clean, tags, clampImportance(importance, 0.7), memmodel.DebtOpen); ok {
				added = mem.Long.AddDebt(d)
			}
		case kind == "event" || hasTag("quest") || hasTag("combat"):
			impact := memmodel.ImpactMed
			if containsAny(strings.ToLower(clean), []string{"death", "died", "defeat", "boss", "collapse"}) {
				impact = memmodel.ImpactHigh
			}
			if e, ok := memmodel.NewEvent(ts, clean, tags, clampImportance(importance, 0.62), impact); ok {
				added = mem.Long.AddEvent(e)
			}
		default:
			if f, ok := memmodel.NewFact(ts, clean, tags, clampImportance(importance, 0.55), 0.72); ok {
				added = mem.Long.AddFact(f)
			}
		}
		if added {
			mem.Long.SetSummary(ts, clean)
			if err := s.store.SaveNPC(mem); err != nil {
				return err
			}
		}
	}

	world, err := s.LoadWorld()
	if err != nil {
		return err
	}
	worldTags := tags
	if len(worldTags) == 0 {
		worldTags = []string{"system"}
	}
	if e, ok := memmodel.NewEvent(time.Now(), clean, worldTags, clampImportance(importance, 0.55), memmodel.ImpactMed); ok {
		if world.Long.AddEvent(e) {
			world.Long.SetSummary(e.Timestamp, clean)
			if err := s.store.SaveWorld(world); err != nil {
				return err
			}
		}
	}
	return nil
}

func clampImportance(v, fallback float64) float64 {
	if v <= 0 {
		v = fallback
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsAny(hay string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(hay, n) {
			return true
		}
	}
	return false
}

func (s *Service) npcIndex(scoped string) *vectorindex.Index {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if idx, ok := s.npcIndexes[scoped]; ok {
		return idx
	}
	var native vectorindex.NativeEngine
	if s.nativeMaker != nil {
		native = s.nativeMaker()
	}
	idx := vectorindex.New(native)
	_ = idx.Load(s.store.IndexRoot()+"/npcs/"+normalize.SanitizeID(scoped)+".faiss", s.store.IndexRoot()+"/npcs/"+normalize.SanitizeID(scoped)+".jsonl")
	s.npcIndexes[scoped] = idx
	return idx
}

func (s *Service) worldIndexRef() *vectorindex.Index {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.worldIndex != nil {
		return s.worldIndex
	}
	var native vectorindex.NativeEngine
	if s.nativeMaker != nil {
		native = s.nativeMaker()
	}
	idx := vectorindex.New(native)
	_ = idx.Load(s.store.IndexRoot()+"/world.faiss", s.store.IndexRoot()+"/world.jsonl")
	s.worldIndex = idx
	return idx
}

func npcRecords(mem *memmodel.NPCMemory) []vectorindex.RecordInput {
	baseID := mem.ScopedID
	if idx := strings.Index(baseID, "__"); idx >= 0 {
		baseID = baseID[idx+2:]
	}
	var rows []vectorindex.RecordInput
	meta := func(kind, ts string, tags []string, importance float64) map[string]string {
		return map[string]string{
			"kind": kind, "npc_id": baseID, "scope_npc_id": mem.ScopedID,
			"ts": ts, "tags": strings.Join(tags, ","), "importance": fmt.Sprintf("%.4f", importance),
		}
	}
	for _, c := range mem.Chunks {
		if c.Summary == "" {
			continue
		}
		rows = append(rows, vectorindex.RecordInput{RecordID: "chunk:" + c.ID, Text: c.Summary, Meta: meta("chunk", c.End.String(), c.Tags, c.Importance)})
	}
	for _, f := range mem.Long.Facts {
		rows = append(rows, vectorindex.RecordInput{RecordID: "fact:" + f.ID, Text: f.Text, Meta: meta("fact", f.Timestamp.String(), f.Tags, f.Importance)})
	}
	for _, e := range mem.Long.Events {
		rows = append(rows, vectorindex.RecordInput{RecordID: "event:" + e.ID, Text: e.Text, Meta: meta("event:"+string(e.Impact), e.Timestamp.String(), e.Tags, e.Importance)})
	}
	for _, p := range mem.Long.Promises {
		rows = append(rows, vectorindex.RecordInput{RecordID: "promise:" + p.ID, Text: p.Text, Meta: meta("promise:"+string(p.Status), p.Timestamp.String(), p.Tags, p.Importance)})
	}
	for _, d := range mem.Long.Debts {
		rows = append(rows, vectorindex.RecordInput{RecordID: "debt:" + d.ID, Text: d.Text, Meta: meta("debt:"+string(d.Status), d.Timestamp.String(), d.Tags, d.Importance)})
	}
	return rows
}

func worldRecords(mem *memmodel.WorldMemory) []vectorindex.RecordInput {
	var rows []vectorindex.RecordInput
	meta := func(kind, ts string, tags []string, importance float64) map[string]string {
		return map[string]string{"kind": kind, "ts": ts, "tags": strings.Join(tags, ","), "importance": fmt.Sprintf("%.4f", importance)}
	}
	for _, c := range mem.Chunks {
		if c.Summary == "" {
			continue
		}
		rows = append(rows, vectorindex.RecordInput{RecordID: "world_chunk:" + c.ID, Text: c.Summary, Meta: meta("world_chunk", c.End.String(), c.Tags, c.Importance)})
	}
	for _, f := range mem.Long.Facts {
		rows = append(rows, vectorindex.RecordInput{RecordID: "world_fact:" + f.ID, Text: f.Text, Meta: meta("world_fact", f.Timestamp.String(), f.Tags, f.Importance)})
	}
	for _, e := range mem.Long.Events {
		rows = append(rows, vectorindex.RecordInput{RecordID: "world_event:" + e.ID, Text: e.Text, Meta: meta("world_event:"+string(e.Impact), e.Timestamp.String(), e.Tags, e.Importance)})
	}
	return rows
}

// RebuildNPCIndex re-embeds every chunk/fact/event/promise/debt for the
// scope and persists the rebuilt index. Returns the number of records
// admitted.
func (s *Service) RebuildNPCIndex(ctx context.Context, profile, npcID string) (int, error) {
	mem, err := s.LoadNPC(profile, npcID)
	if err != nil {
		return 0, err
	}
	records := npcRecords(mem)
	idx := s.npcIndex(mem.ScopedID)
	added, err := idx.RebuildFromRecords(records, func(texts []string) ([][]float32, error) {
		return s.embed.EmbedTexts(ctx, texts)
	})
	if err != nil {
		return 0, err
	}
	sanitized := normalize.SanitizeID(mem.ScopedID)
	if err := idx.Persist(s.store.IndexRoot()+"/npcs/"+sanitized+".faiss", s.store.IndexRoot()+"/npcs/"+sanitized+".jsonl"); err != nil {
		return 0, err
	}
	return added, nil
}

// RebuildWorldIndex is RebuildNPCIndex's world-scope analogue.
func (s *Service) RebuildWorldIndex(ctx context.Context) (int, error) {
	mem, err := s.LoadWorld()
	if err != nil {
		return 0, err
	}
	records := worldRecords(mem)
	idx := s.worldIndexRef()
	added, err := idx.RebuildFromRecords(records, func(texts []string) ([][]float32, error) {
		return s.embed.EmbedTexts(ctx, texts)
	})
	if err != nil {
		return 0, err
	}
	if err := idx.Persist(s.store.IndexRoot()+"/world.faiss", s.store.IndexRoot()+"/world.jsonl"); err != nil {
		return 0, err
	}
	return added, nil
}

// RetrieveContext embeds query, gathers vector hits from the indices mode
// dictates, and hands everything to the Retrieval Engine for scoring. If
// the relevant memory has no chunks yet, an opportunistic rebuild is
// attempted first (errors from that attempt are swallowed).
func (s *Service) RetrieveContext(ctx context.Context, profile, npcID, query string, mode retrieval.Mode, limits retrieval.Limits) (retrieval.Envelope, error) {
	var npcMem *memmodel.NPCMemory
	var worldMem *memmodel.WorldMemory

	// When both scopes are in play, load and opportunistically rebuild them
	// concurrently: the two stores/indexes are independent, so there is no
	// reason to serialize the NPC-scope round trip behind the world one.
	eg, egCtx := errgroup.WithContext(ctx)
	if mode == retrieval.ModeNPC || mode == retrieval.ModeBoth {
		eg.Go(func() error {
			mem, err := s.LoadNPC(profile, npcID)
			if err != nil {
				return err
			}
			if len(mem.Chunks) == 0 {
				_, _ = s.RebuildNPCIndex(egCtx, profile, npcID)
			}
			npcMem = mem
			return nil
		})
	}
	if mode == retrieval.ModeWorld || mode == retrieval.ModeBoth {
		eg.Go(func() error {
			mem, err := s.LoadWorld()
			if err != nil {
				return err
			}
			if len(mem.Chunks) == 0 {
				_, _ = s.RebuildWorldIndex(egCtx)
			}
			worldMem = mem
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return retrieval.Envelope{}, err
	}

	var hits []retrieval.VectorHit
	if s.embed.Mode() != embedding.ModeDisabled {
		vecs, err := s.embed.EmbedTexts(ctx, []string{query})
		if err == nil && len(vecs) == 1 && len(vecs[0]) > 0 {
			topK := limits.Retrieved
			if topK < 1 {
				topK = 1
			}
			if mode == retrieval.ModeNPC || mode == retrieval.ModeBoth {
				idx := s.npcIndex(ScopeKey(profile, npcID))
				hits = append(hits, retrieval.HitsFromSearch(idx.Search(vecs[0], topK, nil))...)
			}
			if mode == retrieval.ModeWorld || mode == retrieval.ModeBoth {
				hits = append(hits, retrieval.HitsFromSearch(s.worldIndexRef().Search(vecs[0], topK, nil))...)
			}
		}
	}

	return retrieval.Retrieve(retrieval.Query{
		NPC: npcMem, World: worldMem, Text: query, Mode: mode, Hits: hits, Limits: limits,
	}), nil
}
