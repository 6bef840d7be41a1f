package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"margin-borrow-alerts/internal/margin"
)

const (
	borrowRepayPath  = "/bapi/margin/v1/public/margin/statistics/24h-borrow-and-repay"
	availInvPath     = "/bapi/margin/v1/public/margin/marketStats/available-inventory"
	klinesPath       = "/api/v3/klines"
	dailyVolumePath  = "/api/v3/ticker/24hr"
	exchangeInfoPath = "/fapi/v1/exchangeInfo"
	fundingRatePath  = "/fapi/v1/premiumIndex"
	openInterestPath = "/futures/data/openInterestHist"
	longShortPath    = "/futures/data/globalLongShortAccountRatio"

	// Open interest and long/short ratio statistics are only published
	// on 5-minute buckets aligned to 5-minute boundaries; klines use
	// the same grid so every series shares one offset table.
	seriesPeriod = "5m"
	seriesLimit  = "50"
)

// defaultExcludedAssets drops stablecoins and majors whose borrow
// figures churn constantly without ever being a signal.
var defaultExcludedAssets = []string{
	"USD1", "USDT", "USDC", "USDP", "FDUSD", "BTC", "WBTC", "WBETH", "ETH", "SOL", "BNSOL",
	"XRP", "BNB", "ADA", "SUI", "LTC", "TRX", "PAXG", "DAI", "BFUSD",
}

// BinanceOptions parameterise the Binance client.
type BinanceOptions struct {
	MarginBaseURL  string
	SpotBaseURL    string
	FuturesBaseURL string
	Timeout        time.Duration
	UserAgent      string
	ExcludedAssets []string
}

// Binance fetches margin statistics and market series from the public
// Binance endpoints.
type Binance struct {
	opts     BinanceOptions
	client   *http.Client
	logger   zerolog.Logger
	excluded map[string]struct{}
}

// NewBinance constructs a Binance client.
func NewBinance(opts BinanceOptions, logger zerolog.Logger) *Binance {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if opts.MarginBaseURL == "" {
		opts.MarginBaseURL = "https://www.binance.com"
	}
	if opts.SpotBaseURL == "" {
		opts.SpotBaseURL = "https://api.binance.com"
	}
	if opts.FuturesBaseURL == "" {
		opts.FuturesBaseURL = "https://fapi.binance.com"
	}
	opts.MarginBaseURL = strings.TrimRight(opts.MarginBaseURL, "/")
	opts.SpotBaseURL = strings.TrimRight(opts.SpotBaseURL, "/")
	opts.FuturesBaseURL = strings.TrimRight(opts.FuturesBaseURL, "/")

	assets := opts.ExcludedAssets
	if assets == nil {
		assets = defaultExcludedAssets
	}
	excluded := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		excluded[asset] = struct{}{}
	}

	return &Binance{
		opts:     opts,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "binance_fetcher").Logger(),
		excluded: excluded,
	}
}

type borrowRepayResponse struct {
	Data struct {
		Coins []struct {
			Asset           string          `json:"asset"`
			TotalBorrow     decimal.Decimal `json:"totalBorrow"`
			TotalRepay      decimal.Decimal `json:"totalRepay"`
			TotalBorrowUSDT decimal.Decimal `json:"totalBorrowInUsdt"`
			TotalRepayUSDT  decimal.Decimal `json:"totalRepayInUsdt"`
		} `json:"coins"`
	} `json:"data"`
}

type availableInventoryResponse struct {
	Data struct {
		Assets map[string]decimal.Decimal `json:"assets"`
	} `json:"data"`
}

// FetchMarginData merges the 24h borrow/repay statistics with the
// available-inventory figures and drops excluded assets. Assets with
// no inventory entry get a zero amount and a warning rather than
// failing the whole batch.
func (b *Binance) FetchMarginData(ctx context.Context) ([]margin.Snapshot, error) {
	var borrowings borrowRepayResponse
	if err := b.get(ctx, b.opts.MarginBaseURL+borrowRepayPath, nil, &borrowings); err != nil {
		return nil, fmt.Errorf("fetch borrow/repay statistics: %w", err)
	}

	var inventory availableInventoryResponse
	if err := b.get(ctx, b.opts.MarginBaseURL+availInvPath, nil, &inventory); err != nil {
		return nil, fmt.Errorf("fetch available inventory: %w", err)
	}

	snapshots := make([]margin.Snapshot, 0, len(borrowings.Data.Coins))
	for _, coin := range borrowings.Data.Coins {
		if _, skip := b.excluded[coin.Asset]; skip {
			continue
		}

		available, ok := inventory.Data.Assets[coin.Asset]
		if !ok {
			b.logger.Warn().Str("asset", coin.Asset).Msg("no available inventory entry; assuming zero")
			available = decimal.Zero
		}

		snapshots = append(snapshots, margin.Snapshot{
			Asset:           coin.Asset,
			TotalBorrow:     coin.TotalBorrow,
			TotalRepay:      coin.TotalRepay,
			TotalBorrowUSDT: coin.TotalBorrowUSDT,
			TotalRepayUSDT:  coin.TotalRepayUSDT,
			Available:       available,
		})
	}

	return snapshots, nil
}

// FetchCandleVolumes returns the last 50 5m candles mapped to taker
// buy/sell quote volume. The candle still accumulating is flagged as
// not closed.
func (b *Binance) FetchCandleVolumes(ctx context.Context, symbol string) ([]Candle, error) {
	query := url.Values{"symbol": {symbol}, "interval": {seriesPeriod}, "limit": {seriesLimit}}

	var raw [][]any
	if err := b.get(ctx, b.opts.SpotBaseURL+klinesPath, query, &raw); err != nil {
		return nil, fmt.Errorf("fetch klines for %s: %w", symbol, err)
	}

	now := time.Now().UTC()
	candles := make([]Candle, 0, len(raw))
	for _, entry := range raw {
		candle, err := candleFromKline(entry, now)
		if err != nil {
			return nil, fmt.Errorf("parse kline for %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// Kline columns used below: 0 open time, 6 close time, 7 quote volume,
// 10 taker buy quote volume.
func candleFromKline(entry []any, now time.Time) (Candle, error) {
	if len(entry) < 11 {
		return Candle{}, fmt.Errorf("kline has %d columns, want at least 11", len(entry))
	}

	openMs, err := asMillis(entry[0])
	if err != nil {
		return Candle{}, fmt.Errorf("open time: %w", err)
	}
	closeMs, err := asMillis(entry[6])
	if err != nil {
		return Candle{}, fmt.Errorf("close time: %w", err)
	}
	quoteVolume, err := asDecimal(entry[7])
	if err != nil {
		return Candle{}, fmt.Errorf("quote volume: %w", err)
	}
	buyQuoteVolume, err := asDecimal(entry[10])
	if err != nil {
		return Candle{}, fmt.Errorf("taker buy quote volume: %w", err)
	}

	closeTime := time.UnixMilli(closeMs).UTC()

	return Candle{
		OpenTime:        time.UnixMilli(openMs).UTC(),
		CloseTime:       closeTime,
		Closed:          !closeTime.After(now),
		BuyQuoteVolume:  buyQuoteVolume,
		SellQuoteVolume: quoteVolume.Sub(buyQuoteVolume),
	}, nil
}

// FetchDailyVolume returns the 24h MINI ticker volume for a spot pair.
func (b *Binance) FetchDailyVolume(ctx context.Context, symbol string) (DailyVolume, error) {
	query := url.Values{"type": {"MINI"}, "symbol": {symbol}}

	var resp struct {
		Symbol      string          `json:"symbol"`
		Volume      decimal.Decimal `json:"volume"`
		QuoteVolume decimal.Decimal `json:"quoteVolume"`
	}
	if err := b.get(ctx, b.opts.SpotBaseURL+dailyVolumePath, query, &resp); err != nil {
		return DailyVolume{}, fmt.Errorf("fetch daily volume for %s: %w", symbol, err)
	}

	return DailyVolume{Symbol: resp.Symbol, Volume: resp.Volume, QuoteVolume: resp.QuoteVolume}, nil
}

// FetchOpenInterest returns the last 50 5m open-interest observations.
func (b *Binance) FetchOpenInterest(ctx context.Context, symbol string) ([]OpenInterest, error) {
	query := url.Values{"symbol": {symbol}, "period": {seriesPeriod}, "limit": {seriesLimit}}

	var resp []struct {
		Symbol    string          `json:"symbol"`
		ValueUSDT decimal.Decimal `json:"sumOpenInterestValue"`
		Timestamp int64           `json:"timestamp"`
	}
	if err := b.get(ctx, b.opts.FuturesBaseURL+openInterestPath, query, &resp); err != nil {
		return nil, fmt.Errorf("fetch open interest for %s: %w", symbol, err)
	}

	points := make([]OpenInterest, 0, len(resp))
	for _, item := range resp {
		points = append(points, OpenInterest{
			Symbol:    item.Symbol,
			ValueUSDT: item.ValueUSDT,
			Timestamp: time.UnixMilli(item.Timestamp).UTC(),
		})
	}
	return points, nil
}

// FetchLongShortRatio returns the last 50 5m global long/short account
// ratio observations.
func (b *Binance) FetchLongShortRatio(ctx context.Context, symbol string) ([]LongShortRatio, error) {
	query := url.Values{"symbol": {symbol}, "period": {seriesPeriod}, "limit": {seriesLimit}}

	var resp []struct {
		Symbol    string          `json:"symbol"`
		Ratio     decimal.Decimal `json:"longShortRatio"`
		Timestamp int64           `json:"timestamp"`
	}
	if err := b.get(ctx, b.opts.FuturesBaseURL+longShortPath, query, &resp); err != nil {
		return nil, fmt.Errorf("fetch long/short ratio for %s: %w", symbol, err)
	}

	points := make([]LongShortRatio, 0, len(resp))
	for _, item := range resp {
		points = append(points, LongShortRatio{
			Symbol:    item.Symbol,
			Ratio:     item.Ratio,
			Timestamp: time.UnixMilli(item.Timestamp).UTC(),
		})
	}
	return points, nil
}

// FetchFundingRate returns the current premium-index funding rate.
func (b *Binance) FetchFundingRate(ctx context.Context, symbol string) (FundingRate, error) {
	query := url.Values{"symbol": {symbol}}

	var resp struct {
		Symbol          string          `json:"symbol"`
		LastFundingRate decimal.Decimal `json:"lastFundingRate"`
		NextFundingTime int64           `json:"nextFundingTime"`
	}
	if err := b.get(ctx, b.opts.FuturesBaseURL+fundingRatePath, query, &resp); err != nil {
		return FundingRate{}, fmt.Errorf("fetch funding rate for %s: %w", symbol, err)
	}

	return FundingRate{
		Symbol:          resp.Symbol,
		Rate:            resp.LastFundingRate,
		NextFundingTime: time.UnixMilli(resp.NextFundingTime).UTC(),
	}, nil
}

// FetchPerpetualSymbols returns the set of perpetual contracts that
// are currently trading.
func (b *Binance) FetchPerpetualSymbols(ctx context.Context) (map[string]struct{}, error) {
	var resp struct {
		Symbols []struct {
			Symbol       string `json:"symbol"`
			ContractType string `json:"contractType"`
			Status       string `json:"status"`
		} `json:"symbols"`
	}
	if err := b.get(ctx, b.opts.FuturesBaseURL+exchangeInfoPath, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch futures exchange info: %w", err)
	}

	symbols := make(map[string]struct{}, len(resp.Symbols))
	for _, item := range resp.Symbols {
		if item.Status == "TRADING" && item.ContractType == "PERPETUAL" {
			symbols[item.Symbol] = struct{}{}
		}
	}
	return symbols, nil
}

func (b *Binance) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(b.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseHTTPError(resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorResponse struct {
	// Margin endpoints respond with status/error/message, futures
	// endpoints with code/msg.
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("binance api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Msg != "" {
			return fmt.Errorf("binance api error (%d): %s", status, apiErr.Msg)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("binance api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("binance api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("binance api error (%d)", status)
}

func asMillis(v any) (int64, error) {
	switch value := v.(type) {
	case float64:
		return int64(value), nil
	case json.Number:
		return value.Int64()
	default:
		return 0, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func asDecimal(v any) (decimal.Decimal, error) {
	switch value := v.(type) {
	case string:
		return decimal.NewFromString(value)
	case float64:
		return decimal.NewFromFloat(value), nil
	case json.Number:
		return decimal.NewFromString(value.String())
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected numeric type %T", v)
	}
}

var _ MarginDataFetcher = (*Binance)(nil)
var _ MarketStatsFetcher = (*Binance)(nil)
