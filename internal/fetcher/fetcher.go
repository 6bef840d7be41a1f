package fetcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"margin-borrow-alerts/internal/margin"
)

// MarginDataFetcher retrieves the current borrow/repay snapshot set.
type MarginDataFetcher interface {
	FetchMarginData(ctx context.Context) ([]margin.Snapshot, error)
}

// MarketStatsFetcher retrieves the spot and derivatives series a full
// report is built from.
type MarketStatsFetcher interface {
	FetchCandleVolumes(ctx context.Context, symbol string) ([]Candle, error)
	FetchDailyVolume(ctx context.Context, symbol string) (DailyVolume, error)
	FetchOpenInterest(ctx context.Context, symbol string) ([]OpenInterest, error)
	FetchLongShortRatio(ctx context.Context, symbol string) ([]LongShortRatio, error)
	FetchFundingRate(ctx context.Context, symbol string) (FundingRate, error)
	FetchPerpetualSymbols(ctx context.Context) (map[string]struct{}, error)
}

// Candle carries the taker buy/sell quote volume of one 5m candle.
type Candle struct {
	OpenTime        time.Time
	CloseTime       time.Time
	Closed          bool
	BuyQuoteVolume  decimal.Decimal
	SellQuoteVolume decimal.Decimal
}

// DailyVolume is the rolling 24h traded volume of a spot pair.
type DailyVolume struct {
	Symbol      string
	Volume      decimal.Decimal
	QuoteVolume decimal.Decimal
}

// OpenInterest is one 5m open-interest observation in USDT terms.
type OpenInterest struct {
	Symbol    string
	ValueUSDT decimal.Decimal
	Timestamp time.Time
}

// LongShortRatio is one 5m global long/short account ratio observation.
type LongShortRatio struct {
	Symbol    string
	Ratio     decimal.Decimal
	Timestamp time.Time
}

// FundingRate is the latest perpetual funding rate and its next
// settlement instant.
type FundingRate struct {
	Symbol          string
	Rate            decimal.Decimal
	NextFundingTime time.Time
}
