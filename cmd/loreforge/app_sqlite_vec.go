//go:build sqlite_vec && cgo

package main

import "loreforge/internal/vectorindex"

// init swaps in the sqlite-vec-backed native engine when the binary is
// built with -tags sqlite_vec (requires cgo). A construction failure
// falls back to nil (brute-force scan) rather than failing startup.
func init() {
	newNativeEngine = func(dim int) vectorindex.NativeEngine {
		engine, err := vectorindex.NewSQLiteVecEngine(dim)
		if err != nil {
			return nil
		}
		return engine
	}
}
