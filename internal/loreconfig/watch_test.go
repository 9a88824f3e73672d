package loreconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"loreforge/internal/reputation"
)

func TestRulesWatcherReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	dir := t.TempDir()
	path := filepath.Join(dir, "reputation_rules.json")

	store := reputation.NewRuleStore()
	watcher, err := NewRulesWatcher(path, store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, watcher.Start(ctx))
	defer func() {
		cancel()
		watcher.Stop()
	}()

	require.NoError(t, os.WriteFile(path, []byte(`{"trade":{"merchant_faction":"Guilde"}}`), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Get().Trade.MerchantFaction == "Guilde" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, "Guilde", store.Get().Trade.MerchantFaction)
}

func TestRulesWatcherStartLoadsExistingFileSynchronously(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reputation_rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"quest":{"default_delta":9}}`), 0o644))

	store := reputation.NewRuleStore()
	watcher, err := NewRulesWatcher(path, store)
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	require.Equal(t, 9, store.Get().Quest.DefaultDelta)
}
