// Package embedding turns text into L2-normalized vectors through one of
// two pluggable backends (a remote HTTP embedding service or a genai-backed
// local model client), with a content-hash cache in front of both and
// automatic fallback between modes on backend failure.
package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"loreforge/internal/memstore"
	"loreforge/internal/normalize"
	"loreforge/internal/obslog"
)

// Mode identifies which backend currently serves embed requests.
type Mode string

const (
	ModeRemoteHTTP Mode = "remote-http"
	ModeLocalModel Mode = "local-model"
	ModeDisabled   Mode = "disabled"
)

const (
	healthCheckTimeout = 900 * time.Millisecond
	batchTimeout       = 8 * time.Second
)

// Backend is the contract a concrete embedding client must satisfy.
type Backend interface {
	HealthCheck(ctx context.Context) error
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type cacheEntry struct {
	TextHash string    `json:"text_hash"`
	Vector   []float32 `json:"vector"`
}

// Provider is the process-wide embedding facade: mode selection, caching,
// and fallback all live here so callers only ever see EmbedTexts.
type Provider struct {
	mu        sync.Mutex
	mode      Mode
	remote    Backend
	local     Backend
	cachePath string
	cache     map[string][]float32
}

// NewProvider wires remote and local backends (either may be nil) plus the
// on-disk cache path, loads the existing cache, and resolves the initial
// mode once via MEMORY_EMBED_MODE or by health-checking the remote backend
// first and the local backend second.
func NewProvider(remote, local Backend, cachePath string) *Provider {
	p := &Provider{
		remote:    remote,
		local:     local,
		cachePath: cachePath,
		cache:     make(map[string][]float32),
	}
	p.loadCache()
	p.mode = p.detectMode()
	obslog.Embedding("embedding provider initialized in mode=%s", p.mode)
	return p
}

func modeFromEnv() (Mode, bool) {
	switch os.Getenv("MEMORY_EMBED_MODE") {
	case "off", "none", "disabled":
		return ModeDisabled, true
	case "local-model", "sentence":
		return ModeLocalModel, true
	case "remote-http", "ollama":
		return ModeRemoteHTTP, true
	default:
		return "", false
	}
}

func (p *Provider) detectMode() Mode {
	if forced, ok := modeFromEnv(); ok {
		return forced
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	if p.remote != nil && p.remote.HealthCheck(ctx) == nil {
		return ModeRemoteHTTP
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel2()
	if p.local != nil && p.local.HealthCheck(ctx2) == nil {
		return ModeLocalModel
	}

	return ModeDisabled
}

// Mode reports the currently active backend mode.
func (p *Provider) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// EmbedTexts returns one L2-normalized vector per input text, in order.
// Cache hits are served without touching a backend. An empty slice marks a
// text that could not be embedded (mode disabled, or both backends failed).
func (p *Provider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	p.mu.Lock()
	mode := p.mode
	for i, t := range texts {
		hash := normalize.ContentHash(t)
		if v, ok := p.cache[hash]; ok {
			result[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	p.mu.Unlock()

	if mode == ModeDisabled || len(missTexts) == 0 {
		for _, i := range missIdx {
			result[i] = []float32{}
		}
		return result, nil
	}

	vectors, err := p.embedWithFallback(ctx, missTexts)
	if err != nil {
		obslog.EmbeddingWarn("embed batch failed on all backends, disabling provider: %v", err)
		p.mu.Lock()
		p.mode = ModeDisabled
		p.mu.Unlock()
		for _, i := range missIdx {
			result[i] = []float32{}
		}
		return result, nil
	}

	p.mu.Lock()
	for j, i := range missIdx {
		vec := normalizeL2(vectors[j])
		result[i] = vec
		p.cache[normalize.ContentHash(missTexts[j])] = vec
	}
	p.mu.Unlock()

	return result, nil
}

func (p *Provider) backendsFor(mode Mode) (primary, secondary Backend) {
	switch mode {
	case ModeRemoteHTTP:
		return p.remote, p.local
	case ModeLocalModel:
		return p.local, p.remote
	default:
		return nil, nil
	}
}

func (p *Provider) embedWithFallback(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	mode := p.mode
	p.mu.Unlock()

	primary, secondary := p.backendsFor(mode)

	if primary != nil {
		ctx1, cancel1 := context.WithTimeout(ctx, batchTimeout)
		vecs, err := primary.Embed(ctx1, texts)
		cancel1()
		if err == nil {
			return vecs, nil
		}
		obslog.EmbeddingWarn("primary backend (mode=%s) failed: %v", mode, err)
	}

	if secondary != nil {
		ctx2, cancel2 := context.WithTimeout(ctx, batchTimeout)
		vecs, err := secondary.Embed(ctx2, texts)
		cancel2()
		if err == nil {
			p.mu.Lock()
			if secondary == p.remote {
				p.mode = ModeRemoteHTTP
			} else {
				p.mode = ModeLocalModel
			}
			p.mu.Unlock()
			return vecs, nil
		}
		obslog.EmbeddingWarn("fallback backend failed: %v", err)
	}

	return nil, fmt.Errorf("embedding: all backends unavailable")
}

func normalizeL2(v []float32) []float32 {
	if len(v) == 0 {
		return []float32{}
	}
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return []float32{}
	}
	scale := float32(1 / math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * scale
	}
	return out
}

func (p *Provider) loadCache() {
	lines, err := memstore.ReadJSONLines(p.cachePath)
	if err != nil {
		obslog.EmbeddingWarn("failed to read embedding cache %s: %v", p.cachePath, err)
		return
	}
	for _, line := range lines {
		var entry cacheEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		p.cache[entry.TextHash] = entry.Vector
	}
}

// FlushCache atomically rewrites the on-disk cache, entries sorted by
// text_hash for reproducibility.
func (p *Provider) FlushCache() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]string, 0, len(p.cache))
	for k := range p.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([][]byte, 0, len(keys))
	for _, k := range keys {
		data, err := json.Marshal(cacheEntry{TextHash: k, Vector: p.cache[k]})
		if err != nil {
			return fmt.Errorf("embedding: marshal cache entry: %w", err)
		}
		lines = append(lines, data)
	}
	return memstore.WriteJSONLines(p.cachePath, lines)
}
