package margin

import (
	"github.com/shopspring/decimal"
)

// Snapshot is one asset's complete 24h borrow/repay state as observed
// in a single poll cycle.
type Snapshot struct {
	Asset           string          `json:"asset"`
	TotalBorrow     decimal.Decimal `json:"total_borrow"`
	TotalRepay      decimal.Decimal `json:"total_repay"`
	TotalBorrowUSDT decimal.Decimal `json:"total_borrow_usdt"`
	TotalRepayUSDT  decimal.Decimal `json:"total_repay_usdt"`
	Available       decimal.Decimal `json:"available"`
}

// Equal reports structural equality across every field. Comparison is
// exact; rounding noise in the available inventory figure counts as a
// change.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.Asset == other.Asset &&
		s.TotalBorrow.Equal(other.TotalBorrow) &&
		s.TotalRepay.Equal(other.TotalRepay) &&
		s.TotalBorrowUSDT.Equal(other.TotalBorrowUSDT) &&
		s.TotalRepayUSDT.Equal(other.TotalRepayUSDT) &&
		s.Available.Equal(other.Available)
}

// Event is one outcome of classifying a polled snapshot against the
// previously known state. The consumer switches exhaustively over
// NewAsset, Updated, and Failure.
type Event interface {
	isEvent()
}

// NewAsset signals an asset seen for the first time.
type NewAsset struct {
	Snapshot Snapshot
}

// Updated carries both sides of a detected change for one asset.
type Updated struct {
	Old Snapshot
	New Snapshot
}

// Failure surfaces a cycle-level fetch or persistence problem.
type Failure struct {
	Message string
}

func (NewAsset) isEvent() {}
func (Updated) isEvent()  {}
func (Failure) isEvent()  {}

var (
	millionUSDT    = decimal.NewFromInt(1_000_000)
	rapidRisePct   = decimal.NewFromInt(1000)
	minRisePct     = decimal.NewFromInt(10)
	bigEnoughRatio = decimal.NewFromInt(5)
)

// BorrowChange is the percentage change of the borrowed amount.
func (u Updated) BorrowChange() decimal.Decimal {
	return PercentChange(u.New.TotalBorrow, u.Old.TotalBorrow)
}

// RepayChange is the percentage change of the repaid amount.
func (u Updated) RepayChange() decimal.Decimal {
	return PercentChange(u.New.TotalRepay, u.Old.TotalRepay)
}

// BorrowRepayRatio divides the new borrowed amount by the new repaid
// amount. A zero repay figure would blow up the quotient, so the
// borrowed amount itself stands in for it.
func (u Updated) BorrowRepayRatio() decimal.Decimal {
	if u.New.TotalRepay.IsZero() {
		return u.New.TotalBorrow
	}
	return u.New.TotalBorrow.Div(u.New.TotalRepay)
}

// BorrowedOverMillionUSDT reports whether the new borrowed amount is
// at least 1M in USDT terms.
func (u Updated) BorrowedOverMillionUSDT() bool {
	return u.New.TotalBorrowUSDT.GreaterThanOrEqual(millionUSDT)
}

// BorrowChangedEnough reports whether borrowing grew by at least 10%.
func (u Updated) BorrowChangedEnough() bool {
	return u.BorrowChange().GreaterThanOrEqual(minRisePct)
}

// BorrowRapidlyIncreased reports whether borrowing grew by at least 1000%.
func (u Updated) BorrowRapidlyIncreased() bool {
	return u.BorrowChange().GreaterThanOrEqual(rapidRisePct)
}

// BorrowBigEnough reports whether borrowing exceeds repayments more
// than fivefold.
func (u Updated) BorrowBigEnough() bool {
	return u.BorrowRepayRatio().GreaterThan(bigEnoughRatio)
}

// ShouldAlert combines the escalation predicates: the borrow/repay
// imbalance must be big, and the borrowing must have either exploded
// or grown moderately from an already large USDT base.
func (u Updated) ShouldAlert() bool {
	largeBase := u.BorrowedOverMillionUSDT() && u.BorrowChangedEnough()
	return u.BorrowBigEnough() && (u.BorrowRapidlyIncreased() || largeBase)
}
