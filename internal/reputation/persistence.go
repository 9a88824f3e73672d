package reputation

import (
	"encoding/json"
	"fmt"
	"os"

	"loreforge/internal/memstore"
)

// LoadLedgerFile reads a persisted ledger from path. A missing or
// malformed file yields a fresh ledger rather than an error, matching
// LoadRulesFile's "always return something usable" contract.
func LoadLedgerFile(path string) *Ledger {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewLedger()
	}
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return NewLedger()
	}
	l.EnsureState()
	return &l
}

// SaveLedgerFile atomically writes l to path, reusing memstore's
// write-temp-then-rename pattern so a crash mid-write never corrupts the
// previous ledger.
func SaveLedgerFile(path string, l *Ledger) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("reputation: marshal ledger: %w", err)
	}
	return memstore.AtomicWriteFile(path, data)
}
