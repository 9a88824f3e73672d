// Package memstore persists NPC and world memory documents and the
// line-delimited mapping files used by the embedding cache and vector
// index. Every write goes through the same atomic pattern: serialize to a
// sibling temp file in the destination directory, fsync, then rename over
// the destination. Nothing is ever truncated in place.
package memstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"loreforge/internal/memmodel"
	"loreforge/internal/normalize"
	"loreforge/internal/obslog"
)

// Store roots all memory documents under memoryRoot and all index payloads
// under indexRoot.
type Store struct {
	memoryRoot string
	indexRoot  string
}

// New creates the npcs/ subdirectories under both roots and returns a Store.
func New(memoryRoot, indexRoot string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(memoryRoot, "npcs"), 0o755); err != nil {
		return nil, fmt.Errorf("memstore: create npc memory directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(indexRoot, "npcs"), 0o755); err != nil {
		return nil, fmt.Errorf("memstore: create npc index directory: %w", err)
	}
	return &Store{memoryRoot: memoryRoot, indexRoot: indexRoot}, nil
}

// MemoryRoot returns the directory holding NPC/world JSON documents.
func (s *Store) MemoryRoot() string { return s.memoryRoot }

// IndexRoot returns the directory holding vector index payloads.
func (s *Store) IndexRoot() string { return s.indexRoot }

// NPCMemoryPath returns memory_root/npcs/<sanitized_scoped_id>.json.
func (s *Store) NPCMemoryPath(scopedID string) string {
	return filepath.Join(s.memoryRoot, "npcs", normalize.SanitizeID(scopedID)+".json")
}

// WorldMemoryPath returns memory_root/world.json.
func (s *Store) WorldMemoryPath() string {
	return filepath.Join(s.memoryRoot, "world.json")
}

// LoadNPC reads the NPC memory for scopedID. A missing file, a parse
// failure, or a validation failure all yield a fresh default that is
// immediately written through so the next load sees a consistent file.
func (s *Store) LoadNPC(scopedID string) (*memmodel.NPCMemory, error) {
	sanitized := normalize.SanitizeID(scopedID)
	path := s.NPCMemoryPath(sanitized)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("memstore: read npc memory %s: %w", path, err)
		}
		return s.resetNPC(sanitized)
	}

	var mem memmodel.NPCMemory
	if err := json.Unmarshal(data, &mem); err != nil || mem.ScopedID == "" {
		obslog.StoreError("npc memory %s failed validation, resetting to default (err=%v)", sanitized, err)
		return s.resetNPC(sanitized)
	}
	mem.Stats.Normalize()
	return &mem, nil
}

func (s *Store) resetNPC(sanitizedID string) (*memmodel.NPCMemory, error) {
	fresh := memmodel.NewNPCMemory(sanitizedID)
	if err := s.SaveNPC(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// SaveNPC atomically writes mem to its scoped path.
func (s *Store) SaveNPC(mem *memmodel.NPCMemory) error {
	return atomicWriteJSON(s.NPCMemoryPath(mem.ScopedID), mem)
}

// LoadWorld reads the singleton world memory. A missing file, parse
// failure, or validation failure yields a fresh default written through.
func (s *Store) LoadWorld() (*memmodel.WorldMemory, error) {
	path := s.WorldMemoryPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("memstore: read world memory %s: %w", path, err)
		}
		return s.resetWorld()
	}

	var mem memmodel.WorldMemory
	if err := json.Unmarshal(data, &mem); err != nil || mem.SchemaVersion == 0 {
		obslog.StoreError("world memory failed validation, resetting to default (err=%v)", err)
		return s.resetWorld()
	}
	mem.Stats.Normalize()
	if mem.WorldFlags == nil {
		mem.WorldFlags = make(map[string]bool)
	}
	return &mem, nil
}

func (s *Store) resetWorld() (*memmodel.WorldMemory, error) {
	fresh := memmodel.NewWorldMemory()
	if err := s.SaveWorld(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// SaveWorld atomically writes the singleton world memory.
func (s *Store) SaveWorld(mem *memmodel.WorldMemory) error {
	return atomicWriteJSON(s.WorldMemoryPath(), mem)
}

// ListNPCIDs returns the sorted stems of every *.json file under
// memory_root/npcs — the full set of scoped ids with a persisted memory.
func (s *Store) ListNPCIDs() ([]string, error) {
	dir := filepath.Join(s.memoryRoot, "npcs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("memstore: list npc ids: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// PurgeNPC deletes the persisted memory for scopedID. A missing file is not
// an error.
func (s *Store) PurgeNPC(scopedID string) error {
	path := s.NPCMemoryPath(scopedID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("memstore: purge npc memory %s: %w", path, err)
	}
	return nil
}

// ReadJSONLines reads a line-delimited file and returns each non-blank
// line's raw bytes. A missing file returns (nil, nil); callers are
// responsible for skipping lines that fail to unmarshal.
func ReadJSONLines(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("memstore: read jsonl %s: %w", path, err)
	}

	var lines [][]byte
	for _, raw := range bytes.Split(data, []byte("\n")) {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			continue
		}
		// Copy out of data's backing array before returning.
		line := make([]byte, len(trimmed))
		copy(line, trimmed)
		lines = append(lines, line)
	}
	return lines, nil
}

// WriteJSONLines atomically replaces path with one line per entry in lines.
// Callers are expected to have already sorted lines for reproducibility
// (e.g. by the record's mapping key).
func WriteJSONLines(path string, lines [][]byte) error {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.Write(l)
		buf.WriteByte('\n')
	}
	return AtomicWriteFile(path, buf.Bytes())
}

func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("memstore: marshal %s: %w", path, err)
	}
	return AtomicWriteFile(path, data)
}

// ReadRawFile reads path whole. A missing file returns (nil, nil) rather
// than an error, matching the "empty index persists an empty file"
// contract for vector payloads.
func ReadRawFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("memstore: read %s: %w", path, err)
	}
	return data, nil
}

// AtomicWriteFile writes data to a sibling temp file in path's directory,
// fsyncs it, then renames it over path. Used directly by the embedding
// cache and vector index for their own non-JSON-document payloads.
func AtomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("memstore: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("memstore: create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("memstore: write temp file %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("memstore: fsync temp file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("memstore: close temp file %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("memstore: rename %s into place: %w", path, err)
	}
	return nil
}
