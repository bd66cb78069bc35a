// Package pipeline runs a submitted transaction through validation, the
// ledger and the vector index as an ordered list of steps.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/ledger"
)

// PipelineStep represents a single step in the submission pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Input       domain.TransactionInput
	Transaction *domain.Transaction

	// Indexed is true once the transaction is in the vector index.
	Indexed bool
	// IndexErr is the indexing failure, if any. It does not fail the
	// pipeline: the ledger append has already committed the transaction.
	IndexErr error
	// RetryJobID is set when a background re-index was enqueued.
	RetryJobID string
}

// Indexer adds a document to a user's vector index.
type Indexer interface {
	Upsert(ctx context.Context, userID, id, text string) error
}

// Step 1: ValidateStep checks the input and stamps an ID and time.
type ValidateStep struct {
	Now func() time.Time
}

func (s *ValidateStep) Execute(ctx context.Context, state *PipelineState) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	tx, err := domain.NewTransaction(state.Input, now())
	if err != nil {
		return err
	}
	state.Transaction = tx
	return nil
}

// Step 2: NormalizeStep tidies the free-text fields.
type NormalizeStep struct{}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	normalizeTransaction(state.Transaction)
	return nil
}

// Step 3: AppendLedgerStep records the transaction. This is the commit point.
type AppendLedgerStep struct {
	Log ledger.Log
}

func (s *AppendLedgerStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Log.Append(ctx, state.Transaction)
}

// Step 4: IndexStep embeds the transaction text into the user's index.
// Failure is recorded on the state, not returned.
type IndexStep struct {
	Index Indexer
	Log   zerolog.Logger
}

func (s *IndexStep) Execute(ctx context.Context, state *PipelineState) error {
	tx := state.Transaction
	if err := s.Index.Upsert(ctx, tx.UserID, tx.ID, tx.Text()); err != nil {
		s.Log.Warn().
			Err(err).
			Str("user_id", tx.UserID).
			Str("transaction_id", tx.ID).
			Msg("Transaction recorded but not indexed")
		state.IndexErr = err
		return nil
	}
	state.Indexed = true
	return nil
}

// Step 5: EnqueueReindexStep schedules a background retry when indexing
// failed. A nil Publisher disables retries.
type EnqueueReindexStep struct {
	Publisher jobs.Publisher
	Log       zerolog.Logger
}

func (s *EnqueueReindexStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.IndexErr == nil || s.Publisher == nil {
		return nil
	}
	tx := state.Transaction
	job := &jobs.IndexJob{
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		Text:          tx.Text(),
	}
	if err := s.Publisher.PublishIndex(ctx, job); err != nil {
		s.Log.Error().
			Err(err).
			Str("user_id", tx.UserID).
			Str("transaction_id", tx.ID).
			Msg("Failed to enqueue re-index job")
		return nil
	}
	state.RetryJobID = job.JobID
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewSubmissionPipeline creates the standard five-step pipeline for a
// submitted transaction.
func NewSubmissionPipeline(log ledger.Log, index Indexer, publisher jobs.Publisher, logger zerolog.Logger) *Pipeline {
	return NewPipeline(
		&ValidateStep{},
		&NormalizeStep{},
		&AppendLedgerStep{Log: log},
		&IndexStep{Index: index, Log: logger},
		&EnqueueReindexStep{Publisher: publisher, Log: logger},
	)
}
