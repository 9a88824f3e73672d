package memoryservice

import (
	"context"
	"strings"

	"loreforge/internal/compactor"
	"loreforge/internal/normalize"
)

// ListScopedNPCIDs returns every scoped NPC id under the store, optionally
// filtered to one profile's prefix.
func (s *Service) ListScopedNPCIDs(profile string) ([]string, error) {
	all, err := s.store.ListNPCIDs()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(profile) == "" {
		return all, nil
	}
	prefix := normalize.SanitizeID(profile) + "__"
	var out []string
	for _, id := range all {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out, nil
}

// PurgeShort empties an NPC's short-turn buffer without touching its long
// memory. Returns false if there was nothing to purge.
func (s *Service) PurgeShort(profile, npcID string) (bool, error) {
	mem, err := s.LoadNPC(profile, npcID)
	if err != nil {
		return false, err
	}
	if len(mem.Short) == 0 {
		return false, nil
	}
	mem.Short = nil
	return true, s.store.SaveNPC(mem)
}

// PurgeScope deletes an NPC's memory file entirely (spec: "destroyed only
// by explicit purge").
func (s *Service) PurgeScope(profile, npcID string) error {
	scoped := ScopeKey(profile, npcID)
	s.indexMu.Lock()
	delete(s.npcIndexes, scoped)
	s.indexMu.Unlock()
	return s.store.PurgeNPC(scoped)
}

// CompactNow forces an immediate compaction pass without waiting for the
// short buffer to cross its threshold, by temporarily treating the
// current length as the threshold. Used by administrative tooling that
// wants a deterministic compaction regardless of AI planner availability.
func (s *Service) CompactNow(ctx context.Context, profile, npcID string) (bool, int, error) {
	mem, err := s.LoadNPC(profile, npcID)
	if err != nil {
		return false, 0, err
	}
	before := len(mem.Short)
	savedMax := mem.Stats.ShortMax
	if before > 0 {
		mem.Stats.ShortMax = before - 1
	}
	changed := compactor.Compact(ctx, mem, nil)
	mem.Stats.ShortMax = savedMax
	if err := s.store.SaveNPC(mem); err != nil {
		return false, 0, err
	}
	added := 0
	if changed {
		added, err = s.RebuildNPCIndex(ctx, profile, npcID)
		if err != nil {
			return changed, added, err
		}
	}
	return changed, added, nil
}
