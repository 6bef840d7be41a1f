package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"margin-borrow-alerts/internal/fetcher"
	"margin-borrow-alerts/internal/margin"
)

// VolumeChange is the buy/sell quote volume change of one window
// relative to the latest closed candle.
type VolumeChange struct {
	Window Window
	Buy    decimal.Decimal
	Sell   decimal.Decimal
}

// OpenInterestChange is the open-interest change of one window
// relative to the most recent observation.
type OpenInterestChange struct {
	Window Window
	Change decimal.Decimal
}

// RatioLevel is the raw long/short ratio at one window. Unlike volume
// and open interest, the absolute level is the signal, so no change is
// computed.
type RatioLevel struct {
	Window Window
	Ratio  decimal.Decimal
}

// VolumeChanges drops candles that are still accumulating, orders the
// rest newest-first, and reports per-window buy/sell volume changes
// against the latest closed candle. An empty series yields an empty
// result; a window beyond the available history is simply absent.
func VolumeChanges(candles []fetcher.Candle) []VolumeChange {
	closed := make([]fetcher.Candle, 0, len(candles))
	for _, candle := range candles {
		if candle.Closed {
			closed = append(closed, candle)
		}
	}

	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].OpenTime.After(closed[j].OpenTime)
	})

	if len(closed) == 0 {
		return nil
	}
	latest := closed[0]

	changes := make([]VolumeChange, 0, len(ChangeWindows))
	for _, window := range ChangeWindows {
		offset := window.Offset()
		if offset >= len(closed) {
			continue
		}
		point := closed[offset]

		changes = append(changes, VolumeChange{
			Window: window,
			Buy:    margin.PercentChange(latest.BuyQuoteVolume, point.BuyQuoteVolume),
			Sell:   margin.PercentChange(latest.SellQuoteVolume, point.SellQuoteVolume),
		})
	}

	return changes
}

// OpenInterestChanges orders the observations newest-first and reports
// per-window open-interest changes against the most recent one.
func OpenInterestChanges(points []fetcher.OpenInterest) []OpenInterestChange {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.After(points[j].Timestamp)
	})

	if len(points) == 0 {
		return nil
	}
	latest := points[0]

	changes := make([]OpenInterestChange, 0, len(ChangeWindows))
	for _, window := range ChangeWindows {
		offset := window.Offset()
		if offset >= len(points) {
			continue
		}

		changes = append(changes, OpenInterestChange{
			Window: window,
			Change: margin.PercentChange(latest.ValueUSDT, points[offset].ValueUSDT),
		})
	}

	return changes
}

// LongShortRatios orders the observations newest-first and reports the
// raw ratio per window, truncated to two decimals, with the current
// level prepended as a WindowNow entry.
func LongShortRatios(points []fetcher.LongShortRatio) []RatioLevel {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.After(points[j].Timestamp)
	})

	if len(points) == 0 {
		return nil
	}
	latest := points[0]

	levels := make([]RatioLevel, 0, len(ChangeWindows)+1)
	levels = append(levels, RatioLevel{
		Window: WindowNow,
		Ratio:  latest.Ratio.Truncate(2),
	})

	for _, window := range ChangeWindows {
		offset := window.Offset()
		if offset >= len(points) {
			continue
		}

		levels = append(levels, RatioLevel{
			Window: window,
			Ratio:  points[offset].Ratio.Truncate(2),
		})
	}

	return levels
}
