package alerting

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"margin-borrow-alerts/internal/margin"
	"margin-borrow-alerts/internal/report"
)

// RenderFullReport lays out the complete alert message: the margin
// block that fired, the spot and futures statistics, and the time
// since the previous alert for the asset.
func RenderFullReport(rep report.Report, sinceLast margin.TimeDelta) string {
	var b strings.Builder

	b.WriteString(renderMarginSection(rep.Symbol, rep.Margin))
	b.WriteString("\n\n")
	b.WriteString(renderSpotSection(rep.Symbol, rep.Spot))
	b.WriteString("\n\n")
	b.WriteString(renderFuturesSection(rep.Futures))
	b.WriteString("\n\nLast signal: ")

	if sinceLast.IsZero() {
		b.WriteString("never")
	} else {
		b.WriteString(sinceLast.String() + "ago")
	}

	return b.String()
}

// RenderNewAsset announces an asset seen for the first time.
func RenderNewAsset(snapshot margin.Snapshot) string {
	return fmt.Sprintf("#*%s* 🆕\n\n#new", snapshot.Asset)
}

func renderMarginSection(symbol string, section report.MarginSection) string {
	var b strings.Builder

	fmt.Fprintf(&b, "#*%s*", symbol)

	fmt.Fprintf(&b, "\n\n%s Borrowed *%s* (%s %s) %s%%",
		trendEmoji(section.BorrowChange),
		formatUSDT(section.TotalBorrowUSDT),
		formatAmount(section.TotalBorrow),
		symbol,
		formatSigned(section.BorrowChange),
	)

	fmt.Fprintf(&b, "\n%s Repayed *%s* (%s %s) %s%%",
		trendEmoji(section.RepayChange),
		formatUSDT(section.TotalRepayUSDT),
		formatAmount(section.TotalRepay),
		symbol,
		formatSigned(section.RepayChange),
	)

	fmt.Fprintf(&b, "\n\n⚖️ B/R ratio *%s*", formatAmount(section.BorrowRepayRatio))
	fmt.Fprintf(&b, "\n🏦 Available *%s* %s", formatAmount(section.Available), symbol)

	return b.String()
}

func renderSpotSection(symbol string, section report.SpotSection) string {
	var b strings.Builder

	b.WriteString("💸 *Spot*\n\n")
	b.WriteString(renderDailyVolume(symbol, section))
	b.WriteString("\n")
	b.WriteString(renderVolumeChanges(section.VolumeChanges))

	return b.String()
}

func renderDailyVolume(symbol string, section report.SpotSection) string {
	if section.DailyVolume == nil {
		return "💰 24h volume: no data"
	}

	return fmt.Sprintf("💰 24h volume: *%s* (%s %s)",
		formatUSDT(section.DailyVolume.QuoteVolume),
		formatAmount(section.DailyVolume.Volume),
		symbol,
	)
}

func renderVolumeChanges(changes []report.VolumeChange) string {
	if len(changes) == 0 {
		return "Trading volumes: no data"
	}

	var buy, sell strings.Builder
	buy.WriteString("🟢 Buy: ")
	sell.WriteString("🔴 Sell: ")

	for _, change := range changes {
		fmt.Fprintf(&buy, "• _%s_ *%s* ", change.Window, formatAmount(change.Buy))
		fmt.Fprintf(&sell, "• _%s_ *%s* ", change.Window, formatAmount(change.Sell))
	}

	return buy.String() + "\n" + sell.String()
}

func renderFuturesSection(section *report.FuturesSection) string {
	if section == nil {
		return "💸 *Futures* not presented"
	}

	var b strings.Builder

	b.WriteString("💸 *Futures*\n\n")
	b.WriteString(renderFundingRate(section.FundingRate))
	b.WriteString("\n")
	b.WriteString(renderOpenInterest(section.OpenInterest))
	b.WriteString("\n")
	b.WriteString(renderLongShortRatios(section.LongShortRatio))

	return b.String()
}

func renderFundingRate(funding *report.FundingInfo) string {
	if funding == nil {
		return "Funding rate: no data"
	}
	return fmt.Sprintf("⏳ Funding rate *%s* in *%s*", funding.Rate, funding.UntilNext)
}

func renderOpenInterest(changes []report.OpenInterestChange) string {
	if len(changes) == 0 {
		return "💣 OI: no data"
	}

	var b strings.Builder
	b.WriteString("💣 OI: ")
	for _, change := range changes {
		fmt.Fprintf(&b, "• _%s_ *%s*%% ", change.Window, formatSigned(change.Change))
	}
	return b.String()
}

func renderLongShortRatios(levels []report.RatioLevel) string {
	if len(levels) == 0 {
		return "⚖️ Long short ratios: no data"
	}

	var b strings.Builder
	b.WriteString("⚖️ Long short ratios: ")
	for _, level := range levels {
		fmt.Fprintf(&b, "• _%s_ *%s* ", level.Window, formatAmount(level.Ratio))
	}
	return b.String()
}

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
	trillion = decimal.NewFromInt(1_000_000_000_000)
)

// formatAmount renders a figure with comma grouping and at most two
// decimal places, trailing zeros removed.
func formatAmount(d decimal.Decimal) string {
	return humanize.CommafWithDigits(d.Truncate(2).InexactFloat64(), 2)
}

// formatUSDT renders a dollar figure on a short scale: $1.53 M.
func formatUSDT(d decimal.Decimal) string {
	abs := d.Abs()
	switch {
	case abs.GreaterThanOrEqual(trillion):
		return "$" + formatAmount(d.Div(trillion)) + " T"
	case abs.GreaterThanOrEqual(billion):
		return "$" + formatAmount(d.Div(billion)) + " B"
	case abs.GreaterThanOrEqual(million):
		return "$" + formatAmount(d.Div(million)) + " M"
	case abs.GreaterThanOrEqual(thousand):
		return "$" + formatAmount(d.Div(thousand)) + " K"
	default:
		return "$" + formatAmount(d)
	}
}

func formatSigned(d decimal.Decimal) string {
	formatted := formatAmount(d)
	if d.Sign() >= 0 {
		return "+" + formatted
	}
	return formatted
}

func trendEmoji(d decimal.Decimal) string {
	if d.Sign() >= 0 {
		return "🔺"
	}
	return "🔻"
}
