package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"margin-borrow-alerts/internal/fetcher"
	"margin-borrow-alerts/internal/margin"
)

type fakeStats struct {
	perps      map[string]struct{}
	perpsErr   error
	daily      fetcher.DailyVolume
	dailyErr   error
	candles    []fetcher.Candle
	candlesErr error
	funding    fetcher.FundingRate
	oi         []fetcher.OpenInterest
	ratios     []fetcher.LongShortRatio
}

func (f *fakeStats) FetchCandleVolumes(ctx context.Context, symbol string) ([]fetcher.Candle, error) {
	return f.candles, f.candlesErr
}

func (f *fakeStats) FetchDailyVolume(ctx context.Context, symbol string) (fetcher.DailyVolume, error) {
	return f.daily, f.dailyErr
}

func (f *fakeStats) FetchOpenInterest(ctx context.Context, symbol string) ([]fetcher.OpenInterest, error) {
	return f.oi, nil
}

func (f *fakeStats) FetchLongShortRatio(ctx context.Context, symbol string) ([]fetcher.LongShortRatio, error) {
	return f.ratios, nil
}

func (f *fakeStats) FetchFundingRate(ctx context.Context, symbol string) (fetcher.FundingRate, error) {
	return f.funding, nil
}

func (f *fakeStats) FetchPerpetualSymbols(ctx context.Context) (map[string]struct{}, error) {
	return f.perps, f.perpsErr
}

var _ fetcher.MarketStatsFetcher = (*fakeStats)(nil)

func testUpdate() margin.Updated {
	return margin.Updated{
		Old: margin.Snapshot{
			Asset:       "DOGE",
			TotalBorrow: decimal.NewFromInt(100),
			TotalRepay:  decimal.NewFromInt(10),
		},
		New: margin.Snapshot{
			Asset:           "DOGE",
			TotalBorrow:     decimal.NewFromInt(1300),
			TotalRepay:      decimal.NewFromInt(10),
			TotalBorrowUSDT: decimal.NewFromInt(2_000_000),
			TotalRepayUSDT:  decimal.NewFromInt(15_000),
			Available:       decimal.NewFromInt(777),
		},
	}
}

func TestBuildReportWithPerpetual(t *testing.T) {
	stats := &fakeStats{
		perps:   map[string]struct{}{"DOGEUSDT": {}},
		daily:   fetcher.DailyVolume{Symbol: "DOGEUSDT", Volume: decimal.NewFromInt(5), QuoteVolume: decimal.NewFromInt(50)},
		candles: volumeSeries(10, nil),
		funding: fetcher.FundingRate{Symbol: "DOGEUSDT", Rate: decimal.RequireFromString("0.0001234567"), NextFundingTime: time.Now().UTC().Add(3 * time.Hour)},
		oi:      oiSeries(10, nil),
		ratios: []fetcher.LongShortRatio{
			{Symbol: "DOGEUSDT", Ratio: decimal.RequireFromString("1.5"), Timestamp: seriesStart},
		},
	}

	collector := NewCollector(stats, time.Minute, zerolog.Nop())
	collector.Refresh(context.Background())

	rep := collector.BuildReport(context.Background(), testUpdate())

	if rep.Symbol != "DOGE" {
		t.Fatalf("expected symbol DOGE, got %s", rep.Symbol)
	}
	if !rep.Margin.BorrowChange.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("expected borrow change 1200, got %s", rep.Margin.BorrowChange)
	}
	if !rep.Margin.BorrowRepayRatio.Equal(decimal.NewFromInt(130)) {
		t.Fatalf("expected ratio 130, got %s", rep.Margin.BorrowRepayRatio)
	}
	if rep.Spot.DailyVolume == nil {
		t.Fatal("expected daily volume to be set")
	}
	if len(rep.Spot.VolumeChanges) == 0 {
		t.Fatal("expected volume changes")
	}
	if rep.Futures == nil {
		t.Fatal("expected a futures section for a trading perpetual")
	}
	if rep.Futures.FundingRate == nil {
		t.Fatal("expected a funding rate")
	}
	if !rep.Futures.FundingRate.Rate.Equal(decimal.RequireFromString("0.00012")) {
		t.Fatalf("funding rate should be truncated to 5 places, got %s", rep.Futures.FundingRate.Rate)
	}
	if len(rep.Futures.OpenInterest) == 0 {
		t.Fatal("expected open interest changes")
	}
}

func TestBuildReportWithoutPerpetual(t *testing.T) {
	stats := &fakeStats{perps: map[string]struct{}{"BTCUSDT": {}}}

	collector := NewCollector(stats, time.Minute, zerolog.Nop())
	collector.Refresh(context.Background())

	rep := collector.BuildReport(context.Background(), testUpdate())
	if rep.Futures != nil {
		t.Fatal("futures section should be absent without a trading perpetual")
	}
}

func TestBuildReportDegradesOnSpotErrors(t *testing.T) {
	stats := &fakeStats{
		dailyErr:   errors.New("boom"),
		candlesErr: errors.New("boom"),
	}

	collector := NewCollector(stats, time.Minute, zerolog.Nop())
	rep := collector.BuildReport(context.Background(), testUpdate())

	if rep.Spot.DailyVolume != nil {
		t.Fatal("daily volume should be absent after a fetch error")
	}
	if rep.Spot.VolumeChanges != nil {
		t.Fatal("volume changes should be absent after a fetch error")
	}
	if !rep.Margin.Available.Equal(decimal.NewFromInt(777)) {
		t.Fatalf("margin section must survive spot failures, got available %s", rep.Margin.Available)
	}
}

func TestRefreshKeepsKnownSymbolsOnError(t *testing.T) {
	stats := &fakeStats{perps: map[string]struct{}{"DOGEUSDT": {}}}
	collector := NewCollector(stats, time.Minute, zerolog.Nop())
	collector.Refresh(context.Background())

	stats.perps = nil
	stats.perpsErr = errors.New("boom")
	collector.Refresh(context.Background())

	rep := collector.BuildReport(context.Background(), testUpdate())
	if rep.Futures == nil {
		t.Fatal("a failed refresh must not drop previously known perpetuals")
	}
}
