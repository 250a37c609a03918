package cron

import (
	"context"

	"github.com/bowerhall/conductor/internal/logger"
	"github.com/bowerhall/conductor/internal/retrieval"
)

const JobSummaryBackfill = "summary_backfill"

// SummaryBackfill summarizes observations captured without a summary.
func SummaryBackfill(m *retrieval.Manager, batch int) JobFunc {
	return func(ctx context.Context) error {
		n, err := m.BackfillSummaries(ctx, batch)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("observation summaries backfilled", "count", n)
		}
		return nil
	}
}
