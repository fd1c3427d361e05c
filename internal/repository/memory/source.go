package memory

import (
	"context"
	"sync"

	"hermes/internal/domain/action"
)

// Source is an in-memory configuration source. Updates replace the whole
// configuration atomically; snapshots already handed out are unaffected.
type Source struct {
	mu       sync.RWMutex
	snapshot *action.Snapshot
}

// NewSource creates a source from an initial configuration.
func NewSource(providers []action.Provider, models []action.Model, actions []action.Config) (*Source, error) {
	snap, err := action.NewSnapshot(providers, models, actions)
	if err != nil {
		return nil, err
	}
	return &Source{snapshot: snap}, nil
}

// Snapshot returns the current immutable configuration view.
func (s *Source) Snapshot(_ context.Context) (*action.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, nil
}

// Update swaps in a new configuration. In-flight invocations keep the
// snapshot they started with.
func (s *Source) Update(providers []action.Provider, models []action.Model, actions []action.Config) error {
	snap, err := action.NewSnapshot(providers, models, actions)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	return nil
}
