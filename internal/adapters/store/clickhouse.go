// Package store provides adapters for slip storage backends.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/slippy"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// LookupObserver is notified after every slip lookup.
type LookupObserver interface {
	ObserveSlipLookup(found bool, err error, elapsed time.Duration)
}

// ClickHouseAdapter wraps goLibMyCarrier's SlipStore to implement domain.SlipFinder.
type ClickHouseAdapter struct {
	store    slippy.SlipStore
	observer LookupObserver
}

// NewClickHouseAdapter creates a new adapter wrapping the given SlipStore.
// observer may be nil.
func NewClickHouseAdapter(store slippy.SlipStore, observer LookupObserver) *ClickHouseAdapter {
	return &ClickHouseAdapter{
		store:    store,
		observer: observer,
	}
}

// FindByCommits searches for a slip matching any of the given commits.
// Returns (nil, "", nil) if no matching slip is found.
func (a *ClickHouseAdapter) FindByCommits(
	ctx context.Context,
	repository string,
	commits []string,
) (slip *domain.Slip, matchedCommit string, err error) {
	if len(commits) == 0 {
		return nil, "", nil
	}

	start := time.Now()
	defer func() {
		if a.observer != nil {
			a.observer.ObserveSlipLookup(slip != nil, err, time.Since(start))
		}
	}()

	found, matched, err := a.store.FindByCommits(ctx, repository, commits)
	if err != nil {
		return nil, "", fmt.Errorf("slip lookup for %s: %w", repository, err)
	}
	if found == nil {
		return nil, "", nil
	}

	return &domain.Slip{
		CorrelationID: found.CorrelationID,
		MatchedCommit: domain.Oid(matched),
		Repository:    repository,
	}, matched, nil
}

// Close releases any resources held by the store.
func (a *ClickHouseAdapter) Close() error {
	return a.store.Close()
}
