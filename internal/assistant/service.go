// Package assistant is the entry point for transaction submission and
// question answering.
package assistant

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/classifier"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/gateway"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/ledger"
	"github.com/dvloznov/finance-assistant/internal/metrics"
	"github.com/dvloznov/finance-assistant/internal/pipeline"
	"github.com/dvloznov/finance-assistant/internal/prompt"
)

// Index is the part of the vector index the assistant needs.
type Index interface {
	Upsert(ctx context.Context, userID, id, text string) error
	RetrieveAll(ctx context.Context, userID string) ([]string, error)
	IDs(ctx context.Context, userID string) ([]string, error)
}

// Deps are the collaborators of a Service. Publisher may be nil, in which
// case failed indexing is not retried in the background.
type Deps struct {
	Ledger     ledger.Log
	Index      Index
	Classifier classifier.Classifier
	Generator  gateway.Generator
	Assembler  *prompt.Assembler
	Publisher  jobs.Publisher
}

// Service submits transactions and answers questions.
type Service struct {
	ledger     ledger.Log
	index      Index
	classifier classifier.Classifier
	generator  gateway.Generator
	assembler  *prompt.Assembler
	publisher  jobs.Publisher
	submission *pipeline.Pipeline
	log        zerolog.Logger
}

// New creates a Service.
func New(d Deps, log zerolog.Logger) *Service {
	if d.Assembler == nil {
		d.Assembler = prompt.NewAssembler(prompt.DefaultMaxHistory, 0)
	}
	return &Service{
		ledger:     d.Ledger,
		index:      d.Index,
		classifier: d.Classifier,
		generator:  d.Generator,
		assembler:  d.Assembler,
		publisher:  d.Publisher,
		submission: pipeline.NewSubmissionPipeline(d.Ledger, d.Index, d.Publisher, log),
		log:        log,
	}
}

// Receipt reports what happened to a submitted transaction. A receipt is
// only returned once the transaction is in the ledger; Indexed tells
// whether it is also searchable yet.
type Receipt struct {
	Transaction *domain.Transaction `json:"transaction"`
	Indexed     bool                `json:"indexed"`
	IndexError  string              `json:"index_error,omitempty"`
	RetryJobID  string              `json:"retry_job_id,omitempty"`
}

// SubmitTransaction validates, records and indexes a transaction. An error
// means the transaction was not recorded.
func (s *Service) SubmitTransaction(ctx context.Context, in domain.TransactionInput) (*Receipt, error) {
	state := &pipeline.PipelineState{Input: in}
	if err := s.submission.Execute(ctx, state); err != nil {
		outcome := "failed"
		if apperr.Is(err, apperr.KindValidation) {
			outcome = "rejected"
		}
		metrics.TransactionsSubmittedTotal.WithLabelValues(outcome).Inc()
		s.log.Warn().Err(err).Str("user_id", in.UserID).Msg("Transaction not recorded")
		return nil, err
	}

	receipt := &Receipt{
		Transaction: state.Transaction,
		Indexed:     state.Indexed,
		RetryJobID:  state.RetryJobID,
	}
	outcome := "indexed"
	if state.IndexErr != nil {
		receipt.IndexError = apperr.Detail(state.IndexErr)
		outcome = "recorded"
	}
	metrics.TransactionsSubmittedTotal.WithLabelValues(outcome).Inc()

	s.log.Info().
		Str("user_id", state.Transaction.UserID).
		Str("transaction_id", state.Transaction.ID).
		Bool("indexed", receipt.Indexed).
		Msg("Transaction recorded")
	return receipt, nil
}

// ListTransactions returns a user's ledger in insertion order.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	if err := domain.CheckUserID("Service.ListTransactions", userID); err != nil {
		return nil, err
	}
	txs, err := s.ledger.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	return txs, nil
}

// ReindexMissing schedules an index job for every transaction in the
// user's ledger that is not in their index, such as one whose retry was
// lost when the process stopped. The jobs carry only IDs; the text is read
// back from the ledger when they run. Without a Publisher the jobs run
// before ReindexMissing returns and their final status is reported.
func (s *Service) ReindexMissing(ctx context.Context, userID string) ([]*jobs.IndexJob, error) {
	const op = "Service.ReindexMissing"
	if err := domain.CheckUserID(op, userID); err != nil {
		return nil, err
	}

	indexed, err := s.index.IDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(indexed))
	for _, id := range indexed {
		have[id] = true
	}

	txs, err := s.ledger.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	var handler jobs.JobHandler
	if s.publisher == nil {
		handler = NewReindexHandler(s.index, s.ledger, s.log)
	}

	scheduled := []*jobs.IndexJob{}
	for _, tx := range txs {
		if have[tx.ID] {
			continue
		}
		job := &jobs.IndexJob{UserID: userID, TransactionID: tx.ID}
		if handler == nil {
			if err := s.publisher.PublishIndex(ctx, job); err != nil {
				return scheduled, err
			}
			scheduled = append(scheduled, job)
			continue
		}

		job.JobID = uuid.New().String()
		job.CreatedAt = time.Now().UTC()
		job.Status = jobs.JobStatusCompleted
		if err := handler(ctx, job); err != nil {
			job.Status = jobs.JobStatusFailed
			job.Error = apperr.Detail(err)
		}
		scheduled = append(scheduled, job)
	}

	s.log.Info().
		Str("user_id", userID).
		Int("ledger", len(txs)).
		Int("indexed", len(indexed)).
		Int("scheduled", len(scheduled)).
		Msg("Reconciled index with ledger")
	return scheduled, nil
}
