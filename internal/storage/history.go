package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertChangeSQL = `INSERT INTO margin_changes (
        asset,
        kind,
        total_borrow,
        total_repay,
        total_borrow_usdt,
        total_repay_usdt,
        available,
        borrow_change_pct
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, created_at;`

	listRecentChangesSQL = `SELECT
        id,
        asset,
        kind,
        total_borrow,
        total_repay,
        total_borrow_usdt,
        total_repay_usdt,
        available,
        borrow_change_pct,
        created_at
    FROM margin_changes
    ORDER BY created_at DESC
    LIMIT $1;`

	listChangesBetweenSQL = `SELECT
        id,
        asset,
        kind,
        total_borrow,
        total_repay,
        total_borrow_usdt,
        total_repay_usdt,
        available,
        borrow_change_pct,
        created_at
    FROM margin_changes
    WHERE asset = $1
      AND created_at >= $2
      AND created_at < $3
    ORDER BY created_at;`

	insertAlertSQL = `INSERT INTO alerts (
        asset,
        borrow_change_pct,
        borrow_repay_ratio
    ) VALUES (
        $1,$2,$3
    )
    RETURNING id, created_at;`

	deleteChangesBeforeSQL = `DELETE FROM margin_changes WHERE created_at < $1;`
)

// ChangeHistory defines persistence for accepted snapshot changes.
type ChangeHistory interface {
	InsertChange(ctx context.Context, rec ChangeRecord) (ChangeRecord, error)
	ListRecentChanges(ctx context.Context, limit int) ([]ChangeRecord, error)
	ListChangesBetween(ctx context.Context, asset string, from, to time.Time) ([]ChangeRecord, error)
	DeleteChangesBefore(ctx context.Context, olderThan time.Time) error
}

// AlertHistory defines persistence for emitted alerts.
type AlertHistory interface {
	InsertAlert(ctx context.Context, rec AlertRecord) (AlertRecord, error)
}

// History aggregates audit access to changes and alerts.
type History struct {
	pool *pgxpool.Pool
}

// NewHistory wires a pgx pool into a History store.
func NewHistory(pool *pgxpool.Pool) *History {
	return &History{pool: pool}
}

// Close releases the underlying pool resources.
func (h *History) Close() {
	if h == nil || h.pool == nil {
		return
	}
	h.pool.Close()
}

func (h *History) getPool() (*pgxpool.Pool, error) {
	if h == nil || h.pool == nil {
		return nil, ErrNotConfigured
	}
	return h.pool, nil
}

// InsertChange persists one accepted snapshot change.
func (h *History) InsertChange(ctx context.Context, rec ChangeRecord) (ChangeRecord, error) {
	pool, err := h.getPool()
	if err != nil {
		return ChangeRecord{}, err
	}

	row := pool.QueryRow(ctx, insertChangeSQL,
		rec.Asset,
		rec.Kind,
		rec.TotalBorrow.String(),
		rec.TotalRepay.String(),
		rec.TotalBorrowUSDT.String(),
		rec.TotalRepayUSDT.String(),
		rec.Available.String(),
		rec.BorrowChangePct.String(),
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return ChangeRecord{}, fmt.Errorf("insert change: %w", err)
	}
	return rec, nil
}

// ListRecentChanges lists the most recent accepted changes.
func (h *History) ListRecentChanges(ctx context.Context, limit int) ([]ChangeRecord, error) {
	pool, err := h.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentChangesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent changes: %w", queryErr)
	}
	defer rows.Close()

	return collectChanges(rows, limit)
}

// ListChangesBetween lists one asset's changes inside a time window.
func (h *History) ListChangesBetween(ctx context.Context, asset string, from, to time.Time) ([]ChangeRecord, error) {
	pool, err := h.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listChangesBetweenSQL, asset, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list changes between: %w", queryErr)
	}
	defer rows.Close()

	return collectChanges(rows, 0)
}

// DeleteChangesBefore deletes historical changes.
func (h *History) DeleteChangesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := h.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteChangesBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete changes before: %w", execErr)
	}
	return nil
}

// InsertAlert persists an alert emission.
func (h *History) InsertAlert(ctx context.Context, rec AlertRecord) (AlertRecord, error) {
	pool, err := h.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		rec.Asset,
		rec.BorrowChangePct.String(),
		rec.BorrowRepayRatio.String(),
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", err)
	}
	return rec, nil
}

func collectChanges(rows pgx.Rows, sizeHint int) ([]ChangeRecord, error) {
	records := make([]ChangeRecord, 0, sizeHint)
	for rows.Next() {
		rec, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanChange(rows pgx.Rows) (ChangeRecord, error) {
	var (
		rec        ChangeRecord
		borrow     string
		repay      string
		borrowUSDT string
		repayUSDT  string
		available  string
		changePct  string
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.Asset,
		&rec.Kind,
		&borrow,
		&repay,
		&borrowUSDT,
		&repayUSDT,
		&available,
		&changePct,
		&rec.CreatedAt,
	); err != nil {
		return ChangeRecord{}, err
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&rec.TotalBorrow, borrow},
		{&rec.TotalRepay, repay},
		{&rec.TotalBorrowUSDT, borrowUSDT},
		{&rec.TotalRepayUSDT, repayUSDT},
		{&rec.Available, available},
		{&rec.BorrowChangePct, changePct},
	}
	for _, field := range fields {
		value, err := decimal.NewFromString(field.src)
		if err != nil {
			return ChangeRecord{}, fmt.Errorf("parse decimal column: %w", err)
		}
		*field.dst = value
	}

	return rec, nil
}

var _ ChangeHistory = (*History)(nil)
var _ AlertHistory = (*History)(nil)
