// Package service wires the detector, report collector, and alert
// consumer into one supervised unit.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"margin-borrow-alerts/internal/alerting"
	"margin-borrow-alerts/internal/detector"
	"margin-borrow-alerts/internal/margin"
	"margin-borrow-alerts/internal/report"
	"margin-borrow-alerts/internal/scheduler"
	"margin-borrow-alerts/internal/storage"
)

// Service runs the polling cycle, the perpetual-symbol refresher, and
// the event consumer until its context is cancelled.
type Service struct {
	detector  *detector.Detector
	collector *report.Collector
	scheduler *scheduler.Scheduler
	notifier  alerting.Notifier
	cache     storage.SnapshotCache
	history   *storage.History
	events    chan margin.Event
	logger    zerolog.Logger
}

// Options bundles the collaborators a Service needs. History may be
// nil when no audit database is configured.
type Options struct {
	Detector  *detector.Detector
	Collector *report.Collector
	Scheduler *scheduler.Scheduler
	Notifier  alerting.Notifier
	Cache     storage.SnapshotCache
	History   *storage.History
	Events    chan margin.Event
	Logger    zerolog.Logger
}

// New constructs the service.
func New(opts Options) *Service {
	return &Service{
		detector:  opts.Detector,
		collector: opts.Collector,
		scheduler: opts.Scheduler,
		notifier:  opts.Notifier,
		cache:     opts.Cache,
		history:   opts.History,
		events:    opts.Events,
		logger:    opts.Logger.With().Str("component", "service").Logger(),
	}
}

// Run bootstraps the detector state, then supervises the three
// long-running tasks. The first task to fail cancels the rest.
func (s *Service) Run(ctx context.Context) error {
	if err := s.detector.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap detector: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return s.scheduler.Run(ctx, s.detector.RunCycle)
	})
	group.Go(func() error {
		return s.collector.RunRefresh(ctx)
	})
	group.Go(func() error {
		return s.consume(ctx)
	})

	s.logger.Info().Msg("service started")
	return group.Wait()
}

// consume drains the event queue. Notification failures are logged
// and dropped rather than crashing the pipeline; the persisted state
// already moved on.
func (s *Service) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-s.events:
			s.handle(ctx, event)
		}
	}
}

func (s *Service) handle(ctx context.Context, event margin.Event) {
	switch ev := event.(type) {
	case margin.NewAsset:
		s.handleNewAsset(ctx, ev)
	case margin.Updated:
		s.handleUpdated(ctx, ev)
	case margin.Failure:
		s.handleFailure(ctx, ev)
	default:
		s.logger.Error().Type("event", event).Msg("unhandled event type")
	}
}

func (s *Service) handleNewAsset(ctx context.Context, ev margin.NewAsset) {
	s.logger.Info().Str("asset", ev.Snapshot.Asset).Msg("new asset listed for margin")

	s.recordChange(ctx, storage.ChangeKindNew, ev.Snapshot, margin.PercentChange(ev.Snapshot.TotalBorrow, decimal.Zero))

	if err := s.notifier.Send(ctx, alerting.RenderNewAsset(ev.Snapshot)); err != nil {
		s.logger.Error().Err(err).Str("asset", ev.Snapshot.Asset).Msg("failed to send new asset notification")
	}
}

func (s *Service) handleUpdated(ctx context.Context, ev margin.Updated) {
	asset := ev.New.Asset
	change := ev.BorrowChange()

	s.logger.Debug().
		Str("asset", asset).
		Str("borrow_change_pct", change.String()).
		Msg("snapshot updated")

	s.recordChange(ctx, storage.ChangeKindUpdated, ev.New, change)

	if !ev.ShouldAlert() {
		return
	}

	sinceLast := s.elapsedSinceLastAlert(ctx, asset)
	rep := s.collector.BuildReport(ctx, ev)
	text := alerting.RenderFullReport(rep, sinceLast)

	if err := s.notifier.Send(ctx, text); err != nil {
		s.logger.Error().Err(err).Str("asset", asset).Msg("failed to send alert")
		return
	}

	if err := s.cache.SetLastAlertAt(ctx, asset, time.Now().UTC()); err != nil {
		s.logger.Error().Err(err).Str("asset", asset).Msg("failed to record last alert time")
	}
	s.recordAlert(ctx, asset, ev)
}

func (s *Service) handleFailure(ctx context.Context, ev margin.Failure) {
	s.logger.Warn().Str("message", ev.Message).Msg("cycle failure reported")

	if err := s.notifier.SendError(ctx, ev.Message); err != nil {
		s.logger.Error().Err(err).Msg("failed to send error notification")
	}
}

// elapsedSinceLastAlert returns the zero delta when no alert was ever
// recorded for the asset, which the renderer shows as "never".
func (s *Service) elapsedSinceLastAlert(ctx context.Context, asset string) margin.TimeDelta {
	last, found, err := s.cache.LastAlertAt(ctx, asset)
	if err != nil {
		s.logger.Error().Err(err).Str("asset", asset).Msg("failed to read last alert time")
		return margin.TimeDelta{}
	}
	if !found {
		return margin.TimeDelta{}
	}
	return margin.DeltaBetween(time.Now().UTC(), last)
}

func (s *Service) recordChange(ctx context.Context, kind string, snapshot margin.Snapshot, changePct decimal.Decimal) {
	if s.history == nil {
		return
	}

	_, err := s.history.InsertChange(ctx, storage.ChangeRecord{
		Asset:           snapshot.Asset,
		Kind:            kind,
		TotalBorrow:     snapshot.TotalBorrow,
		TotalRepay:      snapshot.TotalRepay,
		TotalBorrowUSDT: snapshot.TotalBorrowUSDT,
		TotalRepayUSDT:  snapshot.TotalRepayUSDT,
		Available:       snapshot.Available,
		BorrowChangePct: changePct,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("asset", snapshot.Asset).Msg("failed to record change history")
	}
}

func (s *Service) recordAlert(ctx context.Context, asset string, ev margin.Updated) {
	if s.history == nil {
		return
	}

	_, err := s.history.InsertAlert(ctx, storage.AlertRecord{
		Asset:            asset,
		BorrowChangePct:  ev.BorrowChange(),
		BorrowRepayRatio: ev.BorrowRepayRatio(),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("asset", asset).Msg("failed to record alert history")
	}
}
