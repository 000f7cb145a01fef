package storage

import (
	"context"
	"fmt"
	"sync"
)

// KnownIDLookup reports which external ids are already persisted.
type KnownIDLookup interface {
	ExistingExternalIDs(ctx context.Context, externalIDs []string) (map[string]bool, error)
}

// VideoTracker is a snapshot of known external video ids taken once before a
// discovery batch. Ids persisted during the batch are marked as they land, so
// the store is never re-queried per item.
type VideoTracker struct {
	known map[string]struct{}
	mu    sync.RWMutex
}

// LoadVideoTracker snapshots which of candidates the store already holds.
func LoadVideoTracker(ctx context.Context, lookup KnownIDLookup, candidates []string) (*VideoTracker, error) {
	existing, err := lookup.ExistingExternalIDs(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to load known video ids: %w", err)
	}

	vt := &VideoTracker{known: make(map[string]struct{}, len(existing))}
	for id, ok := range existing {
		if ok {
			vt.known[id] = struct{}{}
		}
	}
	return vt, nil
}

func (vt *VideoTracker) IsKnown(externalID string) bool {
	vt.mu.RLock()
	defer vt.mu.RUnlock()

	_, ok := vt.known[externalID]
	return ok
}

func (vt *VideoTracker) MarkKnown(externalID string) {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	vt.known[externalID] = struct{}{}
}

func (vt *VideoTracker) Count() int {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	return len(vt.known)
}
