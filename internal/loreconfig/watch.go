package loreconfig

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"loreforge/internal/obslog"
	"loreforge/internal/reputation"
)

// RulesWatcher watches the directory holding the reputation rule-table
// override file and debounces its writes into reputation.RuleStore
// reloads, mirroring the teacher's MangleWatcher debounce pattern
// (settle window before acting, not one reload per individual write).
type RulesWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	store       *reputation.RuleStore
	path        string
	debounceDur time.Duration
	pending     bool
	lastEvent   time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewRulesWatcher builds a watcher for store backed by the rule file at
// path. The file's parent directory is watched (not the file itself) so
// editor atomic-replace saves, which unlink and recreate, are still
// observed.
func NewRulesWatcher(path string, store *reputation.RuleStore) (*RulesWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &RulesWatcher{
		watcher:     watcher,
		store:       store,
		path:        path,
		debounceDur: 400 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching path's parent directory in a goroutine. An
// initial load happens synchronously before Start returns so callers see
// the on-disk rules immediately, even if the file doesn't exist yet.
func (w *RulesWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.store.ReloadFrom(w.path)

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		obslog.Reputation("rules watcher: failed to create %s: %v (continuing)", dir, err)
	}
	if err := w.watcher.Add(dir); err != nil {
		obslog.Reputation("rules watcher: initial watch failed: %v", err)
	} else {
		obslog.Reputation("rules watcher: watching %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *RulesWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *RulesWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-ticker.C:
			w.maybeReload()
		}
	}
}

func (w *RulesWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	w.pending = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

func (w *RulesWatcher) maybeReload() {
	w.mu.Lock()
	if !w.pending || time.Since(w.lastEvent) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	rules := w.store.ReloadFrom(w.path)
	obslog.ReputationDebug("rules watcher: reloaded %s (merchant_faction=%s, quest_default_delta=%d)",
		w.path, rules.Trade.MerchantFaction, rules.Quest.DefaultDelta)
}
