package main

import (
	"context"
	"fmt"

	"loreforge/internal/embedding"
	"loreforge/internal/memoryservice"
	"loreforge/internal/memstore"
	"loreforge/internal/vectorindex"
)

// newNativeEngine builds the accelerated NativeEngine for a fresh vector
// index, or nil to fall back to the Index's always-current brute-force
// scan. The default build has no native backend wired (see
// app_sqlite_vec.go, which overrides this under the sqlite_vec build tag).
var newNativeEngine = func(dim int) vectorindex.NativeEngine { return nil }

// buildService wires a memoryservice.Service from the active config: the
// memstore Store, an embedding Provider selected per cfg.Embedding, and a
// vector engine maker (native when built with -tags sqlite_vec, brute-force
// otherwise). No compaction planner is registered at the CLI layer, so
// Compact always falls through to the deterministic extractor
// (compactor.Planner's documented nil-safe default).
func buildService(ctx context.Context) (*memoryservice.Service, error) {
	store, err := memstore.New(dataPath(cfg.Storage.MemoryRoot), dataPath(cfg.Storage.IndexRoot))
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	var remote, local embedding.Backend
	switch cfg.Embedding.Provider {
	case "remote-http":
		remote = embedding.NewRemoteHTTPBackend(cfg.Embedding.RemoteBaseURL)
	case "local-model":
		backend, err := embedding.NewGenaiBackend(ctx, cfg.Embedding.GenAIAPIKey, cfg.Embedding.GenAIModel)
		if err != nil {
			return nil, fmt.Errorf("build genai embedding backend: %w", err)
		}
		local = backend
	case "disabled", "":
		// no backend: Provider falls back to its cache-only / disabled mode
	}
	provider := embedding.NewProvider(remote, local, dataPath(cfg.Embedding.CachePath))

	dim := cfg.Embedding.Dimension
	nativeMaker := func() vectorindex.NativeEngine { return newNativeEngine(dim) }

	return memoryservice.NewService(store, provider, nil, nativeMaker), nil
}
