package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"margin-borrow-alerts/internal/storage"
)

// Export renders one asset's change history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Asset == "" {
		return errors.New("--asset must be provided")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	history, closeHistory, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	if history == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeHistory != nil {
		defer closeHistory()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	changes, err := history.ListChangesBetween(ctx, opts.Asset, from, to)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		a.Logger.Info().Str("asset", opts.Asset).Msg("no changes found for export window")
		return nil
	}

	downsampled := downsampleChanges(changes, opts.MaxPoints)
	a.Logger.Info().Int("total", len(changes)).Int("exported", len(downsampled)).Msg("exporting changes")

	if opts.CSVPath != "" {
		if err := writeChangesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeChangesPNG(opts.PNGPath, opts.Asset, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleChanges(changes []storage.ChangeRecord, max int) []storage.ChangeRecord {
	if max <= 0 || len(changes) <= max {
		return changes
	}

	result := make([]storage.ChangeRecord, 0, max)
	step := float64(len(changes)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(changes) {
			idx = len(changes) - 1
		}
		result = append(result, changes[idx])
	}
	return result
}

func writeChangesCSV(path string, changes []storage.ChangeRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"created_at", "asset", "kind", "total_borrow", "total_repay", "total_borrow_usdt", "total_repay_usdt", "available", "borrow_change_pct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, change := range changes {
		record := []string{
			change.CreatedAt.UTC().Format(time.RFC3339),
			change.Asset,
			change.Kind,
			change.TotalBorrow.String(),
			change.TotalRepay.String(),
			change.TotalBorrowUSDT.String(),
			change.TotalRepayUSDT.String(),
			change.Available.String(),
			change.BorrowChangePct.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeChangesPNG(path, asset string, changes []storage.ChangeRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(changes))
	borrowed := make([]float64, len(changes))
	repayed := make([]float64, len(changes))
	changePct := make([]float64, len(changes))

	for i, change := range changes {
		x[i] = change.CreatedAt
		borrowed[i] = change.TotalBorrowUSDT.InexactFloat64()
		repayed[i] = change.TotalRepayUSDT.InexactFloat64()
		changePct[i] = change.BorrowChangePct.InexactFloat64()
	}

	usdtFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Title:  asset + " 24h margin borrow/repay",
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Amount (USDT)",
			ValueFormatter: usdtFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name: "Borrow change (%)",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Borrowed USDT",
				XValues: x,
				YValues: borrowed,
			},
			chart.TimeSeries{
				Name:    "Repayed USDT",
				XValues: x,
				YValues: repayed,
			},
			chart.TimeSeries{
				Name:    "Borrow change %",
				XValues: x,
				YValues: changePct,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
