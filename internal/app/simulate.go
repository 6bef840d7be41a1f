package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"margin-borrow-alerts/internal/alerting"
	"margin-borrow-alerts/internal/margin"
	"margin-borrow-alerts/internal/report"
)

// SimulateOptions describe a synthetic snapshot change.
type SimulateOptions struct {
	Asset      string
	OldBorrow  decimal.Decimal
	NewBorrow  decimal.Decimal
	Repay      decimal.Decimal
	BorrowUSDT decimal.Decimal
}

// SimulateAlert runs one synthetic update through the real alert
// policy, report pipeline, and notifier. The market sections are
// fetched live for the given asset.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	update := margin.Updated{
		Old: margin.Snapshot{
			Asset:       opts.Asset,
			TotalBorrow: opts.OldBorrow,
			TotalRepay:  opts.Repay,
		},
		New: margin.Snapshot{
			Asset:           opts.Asset,
			TotalBorrow:     opts.NewBorrow,
			TotalRepay:      opts.Repay,
			TotalBorrowUSDT: opts.BorrowUSDT,
		},
	}

	if !update.ShouldAlert() {
		return fmt.Errorf("synthetic update for %s does not satisfy the alert policy (borrow change %s%%, B/R ratio %s)",
			opts.Asset, update.BorrowChange(), update.BorrowRepayRatio())
	}

	collector := report.NewCollector(a.newBinance(), a.Config.Scheduler.RefreshInterval, a.Logger)
	collector.Refresh(ctx)

	rep := collector.BuildReport(ctx, update)
	text := alerting.RenderFullReport(rep, margin.TimeDelta{})

	return a.newNotifier().Send(ctx, text)
}
