package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"margin-borrow-alerts/internal/margin"
	"margin-borrow-alerts/internal/storage"
)

type fakeFetcher struct {
	snapshots []margin.Snapshot
	err       error
}

func (f *fakeFetcher) FetchMarginData(ctx context.Context) ([]margin.Snapshot, error) {
	return f.snapshots, f.err
}

type fakeCache struct {
	stored    map[string]margin.Snapshot
	writes    int
	writeErr  error
	alertTime map[string]time.Time
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		stored:    make(map[string]margin.Snapshot),
		alertTime: make(map[string]time.Time),
	}
}

func (c *fakeCache) BulkWrite(ctx context.Context, snapshots []margin.Snapshot) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes++
	for _, snapshot := range snapshots {
		c.stored[snapshot.Asset] = snapshot
	}
	return nil
}

func (c *fakeCache) ReadAll(ctx context.Context) ([]margin.Snapshot, error) {
	snapshots := make([]margin.Snapshot, 0, len(c.stored))
	for _, snapshot := range c.stored {
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func (c *fakeCache) LastAlertAt(ctx context.Context, asset string) (time.Time, bool, error) {
	at, ok := c.alertTime[asset]
	return at, ok, nil
}

func (c *fakeCache) SetLastAlertAt(ctx context.Context, asset string, at time.Time) error {
	c.alertTime[asset] = at
	return nil
}

var _ storage.SnapshotCache = (*fakeCache)(nil)

func testSnapshot(asset string, borrow int64) margin.Snapshot {
	return margin.Snapshot{
		Asset:           asset,
		TotalBorrow:     decimal.NewFromInt(borrow),
		TotalRepay:      decimal.NewFromInt(10),
		TotalBorrowUSDT: decimal.NewFromInt(borrow * 2),
		TotalRepayUSDT:  decimal.NewFromInt(20),
		Available:       decimal.NewFromInt(500),
	}
}

func drain(events chan margin.Event) []margin.Event {
	var out []margin.Event
	for {
		select {
		case ev := <-events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestBootstrapSeedsEmptyCache(t *testing.T) {
	fetch := &fakeFetcher{snapshots: []margin.Snapshot{testSnapshot("DOGE", 100)}}
	cache := newFakeCache()
	events := make(chan margin.Event, 16)

	d := New(fetch, cache, events, zerolog.Nop())
	if err := d.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	if cache.writes != 1 {
		t.Fatalf("empty cache should be seeded with one bulk write, got %d", cache.writes)
	}
	if len(drain(events)) != 0 {
		t.Fatal("bootstrap must not emit events")
	}
}

func TestBootstrapLoadsExistingState(t *testing.T) {
	cache := newFakeCache()
	cache.stored["DOGE"] = testSnapshot("DOGE", 100)

	fetch := &fakeFetcher{err: errors.New("must not be called")}
	events := make(chan margin.Event, 16)

	d := New(fetch, cache, events, zerolog.Nop())
	if err := d.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if cache.writes != 0 {
		t.Fatal("a warm cache must not be rewritten on bootstrap")
	}
}

func TestRunCycleNoChanges(t *testing.T) {
	snapshot := testSnapshot("DOGE", 100)
	cache := newFakeCache()
	cache.stored["DOGE"] = snapshot

	fetch := &fakeFetcher{snapshots: []margin.Snapshot{snapshot}}
	events := make(chan margin.Event, 16)

	d := New(fetch, cache, events, zerolog.Nop())
	if err := d.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	if err := d.RunCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if cache.writes != 0 {
		t.Fatal("an unchanged batch must not be written")
	}
	if len(drain(events)) != 0 {
		t.Fatal("an unchanged batch must not emit events")
	}
}

func TestRunCycleClassifiesNewAndUpdated(t *testing.T) {
	known := testSnapshot("DOGE", 100)
	cache := newFakeCache()
	cache.stored["DOGE"] = known

	fetch := &fakeFetcher{snapshots: []margin.Snapshot{
		testSnapshot("DOGE", 150),
		testSnapshot("PEPE", 42),
	}}
	events := make(chan margin.Event, 16)

	d := New(fetch, cache, events, zerolog.Nop())
	if err := d.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	if err := d.RunCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	got := drain(events)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}

	var sawUpdated, sawNew bool
	for _, ev := range got {
		switch e := ev.(type) {
		case margin.Updated:
			sawUpdated = true
			if !e.Old.TotalBorrow.Equal(decimal.NewFromInt(100)) || !e.New.TotalBorrow.Equal(decimal.NewFromInt(150)) {
				t.Fatalf("updated event carries wrong sides: old %s new %s", e.Old.TotalBorrow, e.New.TotalBorrow)
			}
		case margin.NewAsset:
			sawNew = true
			if e.Snapshot.Asset != "PEPE" {
				t.Fatalf("unexpected new asset %s", e.Snapshot.Asset)
			}
		default:
			t.Fatalf("unexpected event %T", ev)
		}
	}
	if !sawUpdated || !sawNew {
		t.Fatal("expected one Updated and one NewAsset event")
	}

	if cache.writes != 1 {
		t.Fatalf("expected one bulk write, got %d", cache.writes)
	}

	// The second pass over identical data must be silent.
	if err := d.RunCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if len(drain(events)) != 0 {
		t.Fatal("a repeated batch must not emit events again")
	}
}

func TestRunCycleAbandonsBatchOnWriteFailure(t *testing.T) {
	known := testSnapshot("DOGE", 100)
	cache := newFakeCache()
	cache.stored["DOGE"] = known

	fetch := &fakeFetcher{snapshots: []margin.Snapshot{testSnapshot("DOGE", 150)}}
	events := make(chan margin.Event, 16)

	d := New(fetch, cache, events, zerolog.Nop())
	if err := d.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	cache.writeErr = errors.New("redis down")
	if err := d.RunCycle(context.Background(), time.Now()); err == nil {
		t.Fatal("expected an error when the bulk write fails")
	}

	got := drain(events)
	if len(got) != 1 {
		t.Fatalf("expected only a failure event, got %d events", len(got))
	}
	if _, ok := got[0].(margin.Failure); !ok {
		t.Fatalf("expected a failure event, got %T", got[0])
	}

	// The abandoned batch must be re-detected once the cache recovers.
	cache.writeErr = nil
	if err := d.RunCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("recovery cycle failed: %v", err)
	}

	got = drain(events)
	if len(got) != 1 {
		t.Fatalf("expected the change to be re-delivered, got %d events", len(got))
	}
	if _, ok := got[0].(margin.Updated); !ok {
		t.Fatalf("expected an updated event, got %T", got[0])
	}
}

func TestRunCycleFetchFailure(t *testing.T) {
	cache := newFakeCache()
	cache.stored["DOGE"] = testSnapshot("DOGE", 100)

	fetch := &fakeFetcher{snapshots: []margin.Snapshot{testSnapshot("DOGE", 100)}}
	events := make(chan margin.Event, 16)

	d := New(fetch, cache, events, zerolog.Nop())
	if err := d.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	fetch.err = errors.New("binance down")
	fetch.snapshots = nil
	if err := d.RunCycle(context.Background(), time.Now()); err == nil {
		t.Fatal("expected an error when the fetch fails")
	}

	got := drain(events)
	if len(got) != 1 {
		t.Fatalf("expected one failure event, got %d", len(got))
	}
	if _, ok := got[0].(margin.Failure); !ok {
		t.Fatalf("expected a failure event, got %T", got[0])
	}
}
