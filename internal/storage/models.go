package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChangeRecord is one accepted snapshot change persisted for auditing
// and export.
type ChangeRecord struct {
	ID              int64
	Asset           string
	Kind            string
	TotalBorrow     decimal.Decimal
	TotalRepay      decimal.Decimal
	TotalBorrowUSDT decimal.Decimal
	TotalRepayUSDT  decimal.Decimal
	Available       decimal.Decimal
	BorrowChangePct decimal.Decimal
	CreatedAt       time.Time
}

// Change kinds.
const (
	ChangeKindNew     = "new"
	ChangeKindUpdated = "updated"
)

// AlertRecord captures an emitted alert for auditing.
type AlertRecord struct {
	ID               int64
	Asset            string
	BorrowChangePct  decimal.Decimal
	BorrowRepayRatio decimal.Decimal
	CreatedAt        time.Time
}
