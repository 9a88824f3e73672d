package memoryservice

import (
	"errors"
	"sync"
)

// Process-wide singleton, mirroring the teacher's GetOrBootCortex /
// ResetGlobalCortex pattern: lazily constructed on first access, with an
// explicit Set escape hatch for tests and for callers that want to
// replace the wiring (e.g. after a config reload).
var (
	instanceMu sync.RWMutex
	instance   *Service
	bootFn     func() (*Service, error)
)

// SetBootFn registers the lazy constructor used by Get on first access.
// Call this once during process startup before anything calls Get.
func SetBootFn(fn func() (*Service, error)) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	bootFn = fn
}

// Get returns the process-wide Service, constructing it via the
// registered boot function on first access.
func Get() (*Service, error) {
	instanceMu.RLock()
	if instance != nil {
		defer instanceMu.RUnlock()
		return instance, nil
	}
	instanceMu.RUnlock()

	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return instance, nil
	}
	if bootFn == nil {
		return nil, errNoBootFn
	}
	svc, err := bootFn()
	if err != nil {
		return nil, err
	}
	instance = svc
	return instance, nil
}

// Set atomically replaces the singleton, e.g. for tests or a hot reload.
// Passing nil clears it so the next Get call reboots from bootFn.
func Set(s *Service) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = s
}

var errNoBootFn = errors.New("memoryservice: no boot function registered; call SetBootFn before Get")
