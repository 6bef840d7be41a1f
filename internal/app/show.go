package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints recent snapshot changes.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	history, closeHistory, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	if history == nil {
		return errors.New("database not configured; cannot show changes")
	}
	if closeHistory != nil {
		defer closeHistory()
	}

	changes, err := history.ListRecentChanges(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Fprintln(os.Stdout, "no changes found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tAsset\tKind\tBorrowed\tRepayed\tBorrowed USDT\tChange%\tAvailable")

	for _, change := range changes {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			change.CreatedAt.UTC().Format(time.RFC3339),
			change.Asset,
			change.Kind,
			formatDecimal(change.TotalBorrow, 2),
			formatDecimal(change.TotalRepay, 2),
			formatDecimal(change.TotalBorrowUSDT, 2),
			formatDecimal(change.BorrowChangePct, 2),
			formatDecimal(change.Available, 2),
		)
	}

	writer.Flush()
	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
