// Package vectorindex holds a dense, row-major matrix of unit vectors plus
// an ordered mapping list, answering nearest-neighbor queries by inner
// product. A NativeEngine may be plugged in to delegate the actual search
// to a faster implementation (see native_sqlite_vec.go behind a build tag);
// without one, search falls back to a brute-force scan of the matrix, which
// is always kept up to date regardless of which engine answers queries.
package vectorindex

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"loreforge/internal/memstore"
	"loreforge/internal/obslog"
)

// Record is one indexed item's mapping metadata.
type Record struct {
	VectorID int               `json:"vector_id"`
	RecordID string            `json:"record_id"`
	Text     string            `json:"text"`
	Meta     map[string]string `json:"meta"`
}

// SearchHit is one ranked search result.
type SearchHit struct {
	VectorID int
	RecordID string
	Text     string
	Meta     map[string]string
	Score    float64
}

// NativeHit is a raw native-engine match before mapping lookup.
type NativeHit struct {
	VectorID int
	Score    float64
}

// NativeEngine is an optional accelerated backend. The Index always keeps
// its own brute-force matrix current; a NativeEngine only changes how
// Search resolves nearest neighbors.
type NativeEngine interface {
	Add(vectorID int, vec []float32) error
	Search(query []float32, k int) ([]NativeHit, error)
	Persist(path string) error
	Load(path string) (dim int, err error)
	Clear() error
}

// RecordInput is one candidate for RebuildFromRecords.
type RecordInput struct {
	RecordID string
	Text     string
	Meta     map[string]string
}

// Index is a single collection's vector table (one per NPC scope, plus one
// for the world scope).
type Index struct {
	mu      sync.RWMutex
	dim     int
	vectors []float32
	mapping []Record
	native  NativeEngine
}

// New returns an empty index. native may be nil, in which case search is
// always brute-force.
func New(native NativeEngine) *Index {
	return &Index{native: native}
}

// Dim reports the index's fixed dimension (0 before the first insert).
func (idx *Index) Dim() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// Len reports the number of indexed records.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.mapping)
}

func normalizeL2(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return nil
	}
	scale := float32(1 / math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * scale
	}
	return out
}

// Add normalizes vec and appends a new row plus mapping entry. The
// dimension is fixed on the first successful insert; a vector of a
// different dimension, or an empty one, fails silently (returns -1, false)
// per the index's documented contract.
func (idx *Index) Add(recordID, text string, meta map[string]string, vec []float32) (int, bool) {
	normalized := normalizeL2(vec)
	if normalized == nil {
		return -1, false
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dim == 0 {
		idx.dim = len(normalized)
	} else if len(normalized) != idx.dim {
		return -1, false
	}

	vectorID := len(idx.mapping)
	idx.vectors = append(idx.vectors, normalized...)
	idx.mapping = append(idx.mapping, Record{VectorID: vectorID, RecordID: recordID, Text: text, Meta: meta})

	if idx.native != nil {
		if err := idx.native.Add(vectorID, normalized); err != nil {
			obslog.VectorIndexDebug("native engine add failed for vector %d, brute-force copy remains authoritative: %v", vectorID, err)
		}
	}

	return vectorID, true
}

func matchesFilter(meta map[string]string, filter map[string]string) bool {
	for k, v := range filter {
		mv, ok := meta[k]
		if !ok || !strings.EqualFold(mv, v) {
			return false
		}
	}
	return true
}

// Search normalizes query and returns up to k best matches by inner
// product, optionally restricted to records whose metadata exactly
// (case-insensitively) matches every key in filter. It oversamples to
// max(4k, 20) candidates before filtering so the filter doesn't starve a
// sparse metadata slice of an otherwise-deep candidate pool.
func (idx *Index) Search(query []float32, k int, filter map[string]string) []SearchHit {
	if k <= 0 {
		return nil
	}
	normalized := normalizeL2(query)
	if normalized == nil {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dim == 0 || len(normalized) != idx.dim || len(idx.mapping) == 0 {
		return nil
	}

	oversample := 4 * k
	if oversample < 20 {
		oversample = 20
	}
	if oversample > len(idx.mapping) {
		oversample = len(idx.mapping)
	}

	candidates := idx.bruteForceCandidates(normalized, oversample)
	if idx.native != nil {
		if nativeHits, err := idx.native.Search(normalized, oversample); err == nil {
			candidates = idx.resolveNativeHits(nativeHits)
		} else {
			obslog.VectorIndexDebug("native engine search failed, using brute-force matrix: %v", err)
		}
	}

	out := make([]SearchHit, 0, k)
	for _, c := range candidates {
		if filter != nil && !matchesFilter(c.Meta, filter) {
			continue
		}
		out = append(out, c)
		if len(out) >= k {
			break
		}
	}
	return out
}

func (idx *Index) resolveNativeHits(hits []NativeHit) []SearchHit {
	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.VectorID < 0 || h.VectorID >= len(idx.mapping) {
			continue
		}
		rec := idx.mapping[h.VectorID]
		out = append(out, SearchHit{VectorID: rec.VectorID, RecordID: rec.RecordID, Text: rec.Text, Meta: rec.Meta, Score: h.Score})
	}
	return out
}

func (idx *Index) bruteForceCandidates(query []float32, oversample int) []SearchHit {
	scored := make([]SearchHit, len(idx.mapping))
	for i, rec := range idx.mapping {
		offset := i * idx.dim
		row := idx.vectors[offset : offset+idx.dim]
		var dot float64
		for j, q := range query {
			dot += float64(q) * float64(row[j])
		}
		scored[i] = SearchHit{VectorID: rec.VectorID, RecordID: rec.RecordID, Text: rec.Text, Meta: rec.Meta, Score: dot}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > oversample {
		scored = scored[:oversample]
	}
	return scored
}

// Clear empties the index, including the native engine if present.
func (idx *Index) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.dim = 0
	idx.vectors = nil
	idx.mapping = nil
	if idx.native != nil {
		if err := idx.native.Clear(); err != nil {
			return fmt.Errorf("vectorindex: clear native engine: %w", err)
		}
	}
	return nil
}

// RebuildFromRecords clears the index then adds each record whose
// embedding is non-empty, returning the count admitted.
func (idx *Index) RebuildFromRecords(records []RecordInput, embed func(texts []string) ([][]float32, error)) (int, error) {
	if err := idx.Clear(); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}
	vectors, err := embed(texts)
	if err != nil {
		return 0, fmt.Errorf("vectorindex: embed records: %w", err)
	}

	admitted := 0
	for i, r := range records {
		if i >= len(vectors) || len(vectors[i]) == 0 {
			continue
		}
		if _, ok := idx.Add(r.RecordID, r.Text, r.Meta, vectors[i]); ok {
			admitted++
		}
	}
	return admitted, nil
}

// Persist writes the mapping JSONL and the vector payload atomically.
// The vector payload goes through the native engine's writer when one is
// present; otherwise it is a raw little-endian float32 dump. An empty
// index still writes an empty file for the vector side.
func (idx *Index) Persist(indexPath, mappingPath string) error {
	idx.mu.RLock()
	mapping := make([]Record, len(idx.mapping))
	copy(mapping, idx.mapping)
	vectors := make([]float32, len(idx.vectors))
	copy(vectors, idx.vectors)
	native := idx.native
	idx.mu.RUnlock()

	lines := make([][]byte, 0, len(mapping))
	for _, rec := range mapping {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("vectorindex: marshal mapping record: %w", err)
		}
		lines = append(lines, data)
	}
	if err := memstore.WriteJSONLines(mappingPath, lines); err != nil {
		return fmt.Errorf("vectorindex: persist mapping: %w", err)
	}

	if native != nil {
		if err := native.Persist(indexPath); err != nil {
			return fmt.Errorf("vectorindex: persist native index: %w", err)
		}
		return nil
	}

	var buf bytes.Buffer
	for _, v := range vectors {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("vectorindex: encode vectors: %w", err)
		}
	}
	return memstore.AtomicWriteFile(indexPath, buf.Bytes())
}

// Load reads the mapping first, then the vector payload: through the
// native engine if one is present and the file parses as native format,
// otherwise as a raw float32 array with dimension derived from the mapping
// length.
func (idx *Index) Load(indexPath, mappingPath string) error {
	lines, err := memstore.ReadJSONLines(mappingPath)
	if err != nil {
		return fmt.Errorf("vectorindex: load mapping: %w", err)
	}

	mapping := make([]Record, 0, len(lines))
	for _, line := range lines {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		mapping = append(mapping, rec)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.mapping = mapping
	idx.vectors = nil
	idx.dim = 0

	if idx.native != nil {
		if dim, err := idx.native.Load(indexPath); err == nil {
			idx.dim = dim
			return nil
		}
		obslog.VectorIndexDebug("native engine could not load %s, falling back to raw float32 parse", indexPath)
	}

	data, err := readRawFloatFile(indexPath)
	if err != nil {
		return fmt.Errorf("vectorindex: load vector payload: %w", err)
	}
	if len(mapping) == 0 || len(data) == 0 {
		return nil
	}

	idx.dim = len(data) / len(mapping)
	idx.vectors = data
	return nil
}

func readRawFloatFile(path string) ([]float32, error) {
	data, err := memstore.ReadRawFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	count := len(data) / 4
	out := make([]float32, count)
	reader := bytes.NewReader(data)
	for i := 0; i < count; i++ {
		if err := binary.Read(reader, binary.LittleEndian, &out[i]); err != nil {
			return nil, fmt.Errorf("vectorindex: decode float32 at index %d: %w", i, err)
		}
	}
	return out, nil
}
