package app

import (
	"context"
	"errors"
	"time"
)

// Prune deletes change history older than the given cutoff.
func (a *App) Prune(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return errors.New("--older-than must be greater than zero")
	}

	history, closeHistory, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	if history == nil {
		return errors.New("database not configured; cannot prune")
	}
	if closeHistory != nil {
		defer closeHistory()
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	if err := history.DeleteChangesBefore(ctx, cutoff); err != nil {
		return err
	}

	a.Logger.Info().Time("cutoff", cutoff).Msg("pruned change history")
	return nil
}
