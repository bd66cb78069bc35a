package assistant

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/ledger"
	"github.com/dvloznov/finance-assistant/internal/metrics"
)

// NewReindexHandler returns the job handler that retries indexing of a
// recorded transaction. When the job carries no text (for example after a
// restart) the transaction is looked up in the ledger.
func NewReindexHandler(index Index, led ledger.Log, logger zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		indexJob, ok := job.(*jobs.IndexJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		l := logger.With().
			Str("job_id", indexJob.JobID).
			Str("user_id", indexJob.UserID).
			Str("transaction_id", indexJob.TransactionID).
			Logger()
		l.Info().Int("retry", indexJob.RetryCount).Msg("Processing index job")

		text := indexJob.Text
		if text == "" {
			var err error
			if text, err = lookupText(ctx, led, indexJob.UserID, indexJob.TransactionID); err != nil {
				metrics.IndexJobsTotal.WithLabelValues(string(jobs.JobStatusFailed)).Inc()
				return err
			}
		}

		if err := index.Upsert(ctx, indexJob.UserID, indexJob.TransactionID, text); err != nil {
			l.Error().Err(err).Msg("Index job failed")
			metrics.IndexJobsTotal.WithLabelValues(string(jobs.JobStatusFailed)).Inc()
			return err
		}

		l.Info().Msg("Index job completed")
		metrics.IndexJobsTotal.WithLabelValues(string(jobs.JobStatusCompleted)).Inc()
		return nil
	}
}

func lookupText(ctx context.Context, led ledger.Log, userID, txID string) (string, error) {
	txs, err := led.List(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, tx := range txs {
		if tx.ID == txID {
			return tx.Text(), nil
		}
	}
	return "", apperr.E(apperr.KindNotFound, "reindex", "transaction not found", nil)
}
