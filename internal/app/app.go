package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"margin-borrow-alerts/internal/alerting"
	"margin-borrow-alerts/internal/config"
	"margin-borrow-alerts/internal/detector"
	"margin-borrow-alerts/internal/fetcher"
	"margin-borrow-alerts/internal/margin"
	"margin-borrow-alerts/internal/report"
	"margin-borrow-alerts/internal/scheduler"
	"margin-borrow-alerts/internal/service"
	"margin-borrow-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newBinance() *fetcher.Binance {
	return fetcher.NewBinance(fetcher.BinanceOptions{
		MarginBaseURL:  a.Config.Binance.MarginBaseURL,
		SpotBaseURL:    a.Config.Binance.SpotBaseURL,
		FuturesBaseURL: a.Config.Binance.FuturesBaseURL,
		Timeout:        a.Config.Binance.RequestTimeout,
		UserAgent:      a.Config.Binance.UserAgent,
		ExcludedAssets: a.Config.Binance.ExcludedAssets,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegram(cfg.BotToken, cfg.ChatID, cfg.ErrorChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) openCache(ctx context.Context) (*storage.RedisCache, error) {
	return storage.NewRedisCache(ctx, storage.RedisOptions{
		Addr:     a.Config.Cache.Addr,
		Password: a.Config.Cache.Password,
		DB:       a.Config.Cache.DB,
	}, a.Logger)
}

func (a *App) openHistory(ctx context.Context) (*storage.History, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, storage.PoolOptions{
		DSN:             a.Config.Database.DSN,
		MaxOpenConns:    a.Config.Database.MaxOpenConns,
		MaxIdleConns:    a.Config.Database.MaxIdleConns,
		ConnMaxLifetime: a.Config.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}

	history := storage.NewHistory(pool)
	closer := func() {
		history.Close()
	}
	return history, closer, nil
}

// Run executes the long-running watcher service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer cache.Close()

	history, closeHistory, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	if history == nil {
		a.Logger.Warn().Msg("database.dsn not configured; audit history disabled")
	}
	if closeHistory != nil {
		defer closeHistory()
	}

	var startupDelay time.Duration
	if a.Config.Scheduler.AlignStartup {
		startupDelay = scheduler.AlignDelay(time.Now().UTC())
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: startupDelay,
	}, a.Logger)

	binance := a.newBinance()
	notifier := a.newNotifier()
	events := make(chan margin.Event, a.Config.Alerting.QueueSize)

	svc := service.New(service.Options{
		Detector:  detector.New(binance, cache, events, a.Logger),
		Collector: report.NewCollector(binance, a.Config.Scheduler.RefreshInterval, a.Logger),
		Scheduler: sched,
		Notifier:  notifier,
		Cache:     cache,
		History:   history,
		Events:    events,
		Logger:    a.Logger,
	})

	a.Logger.Info().Msg("starting margin watcher service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("margin watcher service stopped")
	return nil
}

// ExportOptions hold parameters for exporting change history.
type ExportOptions struct {
	Asset     string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
