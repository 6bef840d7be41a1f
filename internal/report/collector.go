package report

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"margin-borrow-alerts/internal/fetcher"
	"margin-borrow-alerts/internal/margin"
)

// Report is the complete payload behind one alert.
type Report struct {
	Symbol  string
	Margin  MarginSection
	Spot    SpotSection
	Futures *FuturesSection
}

// MarginSection summarises the borrow/repay state that triggered the
// alert.
type MarginSection struct {
	TotalBorrow      decimal.Decimal
	TotalBorrowUSDT  decimal.Decimal
	TotalRepay       decimal.Decimal
	TotalRepayUSDT   decimal.Decimal
	BorrowChange     decimal.Decimal
	RepayChange      decimal.Decimal
	BorrowRepayRatio decimal.Decimal
	Available        decimal.Decimal
}

// SpotSection carries the 24h volume plus the windowed volume changes.
type SpotSection struct {
	DailyVolume   *fetcher.DailyVolume
	VolumeChanges []VolumeChange
}

// FuturesSection carries derivatives statistics; nil when the asset
// has no trading perpetual contract.
type FuturesSection struct {
	FundingRate    *FundingInfo
	OpenInterest   []OpenInterestChange
	LongShortRatio []RatioLevel
}

// FundingInfo is the current funding rate and the time left until it
// settles.
type FundingInfo struct {
	Rate      decimal.Decimal
	UntilNext margin.TimeDelta
}

// Collector builds full reports by fanning out to the market-data
// endpoints. It maintains the set of trading perpetual symbols so the
// futures section is only attempted where it exists.
type Collector struct {
	stats   fetcher.MarketStatsFetcher
	refresh time.Duration
	logger  zerolog.Logger

	mu    sync.RWMutex
	perps map[string]struct{}
}

// NewCollector constructs a report collector.
func NewCollector(stats fetcher.MarketStatsFetcher, refresh time.Duration, logger zerolog.Logger) *Collector {
	if refresh <= 0 {
		refresh = 750 * time.Second
	}
	return &Collector{
		stats:   stats,
		refresh: refresh,
		logger:  logger.With().Str("component", "report_collector").Logger(),
		perps:   make(map[string]struct{}),
	}
}

// RunRefresh keeps the perpetual symbol set current until ctx is
// cancelled. The first refresh happens immediately so reports built
// early in the process lifetime already see the set.
func (c *Collector) RunRefresh(ctx context.Context) error {
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	for {
		c.Refresh(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Refresh pulls the current perpetual symbol set once. The set only
// ever grows; a delisted contract keeps its entry until restart.
func (c *Collector) Refresh(ctx context.Context) {
	symbols, err := c.stats.FetchPerpetualSymbols(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to refresh perpetual symbols")
		return
	}

	c.mu.Lock()
	for symbol := range symbols {
		c.perps[symbol] = struct{}{}
	}
	c.mu.Unlock()

	c.logger.Debug().Int("symbols", len(symbols)).Msg("refreshed perpetual symbols")
}

func (c *Collector) isPerpetual(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.perps[symbol]
	return ok
}

// BuildReport assembles the margin, spot, and futures sections for an
// update. Section fetch failures degrade to empty sections with an
// error log; a report is always returned.
func (c *Collector) BuildReport(ctx context.Context, update margin.Updated) Report {
	symbol := update.New.Asset
	pair := symbol + "USDT"

	return Report{
		Symbol:  symbol,
		Margin:  buildMarginSection(update),
		Spot:    c.buildSpotSection(ctx, pair),
		Futures: c.buildFuturesSection(ctx, pair),
	}
}

func buildMarginSection(update margin.Updated) MarginSection {
	return MarginSection{
		TotalBorrow:      update.New.TotalBorrow,
		TotalBorrowUSDT:  update.New.TotalBorrowUSDT,
		TotalRepay:       update.New.TotalRepay,
		TotalRepayUSDT:   update.New.TotalRepayUSDT,
		BorrowChange:     update.BorrowChange(),
		RepayChange:      update.RepayChange(),
		BorrowRepayRatio: update.BorrowRepayRatio(),
		Available:        update.New.Available,
	}
}

func (c *Collector) buildSpotSection(ctx context.Context, pair string) SpotSection {
	section := SpotSection{}

	if daily, err := c.stats.FetchDailyVolume(ctx, pair); err != nil {
		c.logger.Error().Err(err).Str("symbol", pair).Msg("failed to fetch daily volume")
	} else {
		section.DailyVolume = &daily
	}

	candles, err := c.stats.FetchCandleVolumes(ctx, pair)
	if err != nil {
		c.logger.Error().Err(err).Str("symbol", pair).Msg("failed to fetch candle volumes")
	} else {
		section.VolumeChanges = VolumeChanges(candles)
	}

	return section
}

func (c *Collector) buildFuturesSection(ctx context.Context, pair string) *FuturesSection {
	if !c.isPerpetual(pair) {
		return nil
	}

	section := &FuturesSection{}

	if funding, err := c.stats.FetchFundingRate(ctx, pair); err != nil {
		c.logger.Error().Err(err).Str("symbol", pair).Msg("failed to fetch funding rate")
	} else {
		section.FundingRate = &FundingInfo{
			Rate:      funding.Rate.Truncate(5),
			UntilNext: margin.DeltaBetween(funding.NextFundingTime, time.Now().UTC()),
		}
	}

	if points, err := c.stats.FetchOpenInterest(ctx, pair); err != nil {
		c.logger.Error().Err(err).Str("symbol", pair).Msg("failed to fetch open interest")
	} else {
		section.OpenInterest = OpenInterestChanges(points)
	}

	if points, err := c.stats.FetchLongShortRatio(ctx, pair); err != nil {
		c.logger.Error().Err(err).Str("symbol", pair).Msg("failed to fetch long/short ratio")
	} else {
		section.LongShortRatio = LongShortRatios(points)
	}

	return section
}
