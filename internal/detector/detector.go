// Package detector classifies freshly polled margin snapshots against
// the last accepted state and turns the differences into events.
package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"margin-borrow-alerts/internal/fetcher"
	"margin-borrow-alerts/internal/margin"
	"margin-borrow-alerts/internal/storage"
)

// Detector owns the in-memory snapshot state. Exactly one cycle runs
// at a time; nothing else reads or writes the state.
type Detector struct {
	fetcher fetcher.MarginDataFetcher
	cache   storage.SnapshotCache
	events  chan<- margin.Event
	logger  zerolog.Logger

	known map[string]margin.Snapshot
}

// New constructs a detector emitting events on the given channel.
func New(f fetcher.MarginDataFetcher, cache storage.SnapshotCache, events chan<- margin.Event, logger zerolog.Logger) *Detector {
	return &Detector{
		fetcher: f,
		cache:   cache,
		events:  events,
		logger:  logger.With().Str("component", "detector").Logger(),
		known:   make(map[string]margin.Snapshot),
	}
}

// Bootstrap seeds the in-memory state from the cache. An empty cache
// means a very first launch: the upstream snapshot set is fetched and
// written through so the next cycle has something to diff against.
func (d *Detector) Bootstrap(ctx context.Context) error {
	snapshots, err := d.cache.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read snapshots from cache: %w", err)
	}

	if len(snapshots) == 0 {
		d.logger.Info().Msg("cache empty; seeding from upstream")

		snapshots, err = d.fetcher.FetchMarginData(ctx)
		if err != nil {
			return fmt.Errorf("fetch initial margin data: %w", err)
		}
		if err := d.cache.BulkWrite(ctx, snapshots); err != nil {
			return fmt.Errorf("seed cache: %w", err)
		}
	}

	for _, snapshot := range snapshots {
		d.known[snapshot.Asset] = snapshot
	}

	d.logger.Info().Int("assets", len(d.known)).Msg("detector state loaded")
	return nil
}

// RunCycle fetches a fresh batch, classifies every snapshot, persists
// the staged changes in one bulk write, and only then commits the
// in-memory state and emits the events. A failed bulk write abandons
// the whole batch: the next cycle re-detects the same deltas against
// the stale state, so delivery is at-least-once.
func (d *Detector) RunCycle(ctx context.Context, _ time.Time) error {
	latest, err := d.fetcher.FetchMarginData(ctx)
	if err != nil {
		d.emit(ctx, margin.Failure{Message: "error while requesting margin data, check service logs"})
		return fmt.Errorf("fetch margin data: %w", err)
	}

	staged := make([]margin.Snapshot, 0)
	events := make([]margin.Event, 0)

	for _, snapshot := range latest {
		previous, seen := d.known[snapshot.Asset]
		switch {
		case !seen:
			staged = append(staged, snapshot)
			events = append(events, margin.NewAsset{Snapshot: snapshot})
		case !previous.Equal(snapshot):
			staged = append(staged, snapshot)
			events = append(events, margin.Updated{Old: previous, New: snapshot})
		}
	}

	if len(staged) == 0 {
		return nil
	}

	if err := d.cache.BulkWrite(ctx, staged); err != nil {
		d.emit(ctx, margin.Failure{Message: fmt.Sprintf("failed to persist snapshot updates: %v", err)})
		return fmt.Errorf("persist snapshot updates: %w", err)
	}

	for _, snapshot := range staged {
		d.known[snapshot.Asset] = snapshot
	}
	for _, event := range events {
		d.emit(ctx, event)
	}

	d.logger.Debug().Int("changed", len(staged)).Int("total", len(latest)).Msg("cycle complete")
	return nil
}

// emit blocks when the queue is full; backpressure on the poll loop is
// preferable to dropping events.
func (d *Detector) emit(ctx context.Context, event margin.Event) {
	select {
	case d.events <- event:
	case <-ctx.Done():
	}
}
