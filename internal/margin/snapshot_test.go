package margin

import (
	"testing"

	"github.com/shopspring/decimal"
)

func snapshot(asset string, borrow, repay, borrowUSDT int64) Snapshot {
	return Snapshot{
		Asset:           asset,
		TotalBorrow:     decimal.NewFromInt(borrow),
		TotalRepay:      decimal.NewFromInt(repay),
		TotalBorrowUSDT: decimal.NewFromInt(borrowUSDT),
		TotalRepayUSDT:  decimal.NewFromInt(repay),
		Available:       decimal.NewFromInt(500),
	}
}

func TestSnapshotEqual(t *testing.T) {
	a := snapshot("DOGE", 100, 50, 1000)
	b := snapshot("DOGE", 100, 50, 1000)

	if !a.Equal(b) {
		t.Fatal("identical snapshots should be equal")
	}

	b.Available = decimal.NewFromInt(501)
	if a.Equal(b) {
		t.Fatal("available inventory difference should count as a change")
	}
}

func TestSnapshotEqualScaleInsensitive(t *testing.T) {
	a := snapshot("DOGE", 100, 50, 1000)
	b := a
	b.TotalBorrow = decimal.RequireFromString("100.00")

	if !a.Equal(b) {
		t.Fatal("100 and 100.00 are the same value")
	}
}

func TestShouldAlertRapidRise(t *testing.T) {
	update := Updated{
		Old: snapshot("PEPE", 100, 10, 100),
		New: snapshot("PEPE", 1300, 10, 100),
	}

	// 1200% rise with a B/R ratio of 130; the USDT size is irrelevant.
	if !update.ShouldAlert() {
		t.Fatal("rapid borrow rise should alert")
	}
}

func TestShouldAlertLargeBase(t *testing.T) {
	update := Updated{
		Old: snapshot("LINK", 1200, 200, 2_000_000),
		New: snapshot("LINK", 1344, 200, 2_000_000),
	}

	// 12% rise, over 1M USDT borrowed, B/R ratio 6.72.
	if !update.ShouldAlert() {
		t.Fatal("moderate rise from a large USDT base should alert")
	}
}

func TestShouldAlertTwelvefoldRise(t *testing.T) {
	update := Updated{
		Old: snapshot("ARB", 100, 200, 100),
		New: snapshot("ARB", 1200, 200, 100),
	}

	// 1100% rise with a B/R ratio of 6 fires regardless of USDT size.
	if !update.ShouldAlert() {
		t.Fatal("a twelvefold borrow rise should alert")
	}
}

func TestShouldAlertRequiresImbalance(t *testing.T) {
	update := Updated{
		Old: snapshot("AVAX", 100, 260, 2_000_000),
		New: snapshot("AVAX", 1300, 260, 2_000_000),
	}

	// 1200% rise but the B/R ratio is 5, not strictly greater.
	if update.ShouldAlert() {
		t.Fatal("a balanced borrow/repay book should never alert")
	}
}

func TestShouldAlertSmallRise(t *testing.T) {
	update := Updated{
		Old: snapshot("OP", 1000, 100, 2_000_000),
		New: snapshot("OP", 1050, 100, 2_000_000),
	}

	// 5% rise is below both thresholds.
	if update.ShouldAlert() {
		t.Fatal("a 5 percent rise should not alert")
	}
}

func TestBorrowRepayRatioZeroRepay(t *testing.T) {
	update := Updated{
		Old: snapshot("SEI", 100, 0, 100),
		New: snapshot("SEI", 700, 0, 100),
	}

	got := update.BorrowRepayRatio()
	if !got.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("zero repay should fall back to the borrowed amount, got %s", got)
	}
	if !update.BorrowBigEnough() {
		t.Fatal("zero repay with large borrow should count as big enough")
	}
}
