package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/jobs"
)

// MockLedger is a mock implementation of ledger.Log for testing.
type MockLedger struct {
	AppendFunc func(ctx context.Context, tx *domain.Transaction) error
	appended   []*domain.Transaction
}

func (m *MockLedger) Append(ctx context.Context, tx *domain.Transaction) error {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(ctx, tx); err != nil {
			return err
		}
	}
	m.appended = append(m.appended, tx)
	return nil
}

func (m *MockLedger) List(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	return m.appended, nil
}

// MockIndexer is a mock implementation of Indexer for testing.
type MockIndexer struct {
	UpsertFunc func(ctx context.Context, userID, id, text string) error
	texts      []string
}

func (m *MockIndexer) Upsert(ctx context.Context, userID, id, text string) error {
	if m.UpsertFunc != nil {
		if err := m.UpsertFunc(ctx, userID, id, text); err != nil {
			return err
		}
	}
	m.texts = append(m.texts, text)
	return nil
}

// MockPublisher is a mock implementation of jobs.Publisher for testing.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.IndexJob) error
	published   []*jobs.IndexJob
}

func (m *MockPublisher) PublishIndex(ctx context.Context, job *jobs.IndexJob) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, job); err != nil {
			return err
		}
	}
	job.JobID = "job-1"
	m.published = append(m.published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func strPtr(s string) *string { return &s }

func input() domain.TransactionInput {
	amount := decimal.NewFromInt(50)
	return domain.TransactionInput{
		UserID:          "u1",
		Amount:          &amount,
		TransactionType: strPtr(" expense "),
		Category:        strPtr("groceries"),
		Description:     strPtr("weekly  shop "),
	}
}

func TestSubmissionPipeline(t *testing.T) {
	indexDown := apperr.E(apperr.KindIndexLoad, "mock", "index data is unreadable", nil)

	tests := []struct {
		name        string
		input       func() domain.TransactionInput
		appendErr   error
		indexErr    error
		publishErr  error
		wantErrKind apperr.Kind
		wantLedger  int
		wantIndexed bool
		wantJob     bool
	}{
		{
			name:        "indexed",
			input:       input,
			wantLedger:  1,
			wantIndexed: true,
		},
		{
			name: "missing field",
			input: func() domain.TransactionInput {
				in := input()
				in.Category = nil
				return in
			},
			wantErrKind: apperr.KindValidation,
		},
		{
			name:        "ledger failure",
			input:       input,
			appendErr:   apperr.E(apperr.KindLedger, "mock", "disk full", nil),
			wantErrKind: apperr.KindLedger,
		},
		{
			name:       "index failure enqueues retry",
			input:      input,
			indexErr:   indexDown,
			wantLedger: 1,
			wantJob:    true,
		},
		{
			name:       "index and enqueue failure still records",
			input:      input,
			indexErr:   indexDown,
			publishErr: errors.New("queue is closed"),
			wantLedger: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			led := &MockLedger{AppendFunc: func(context.Context, *domain.Transaction) error { return tt.appendErr }}
			idx := &MockIndexer{UpsertFunc: func(context.Context, string, string, string) error { return tt.indexErr }}
			pub := &MockPublisher{PublishFunc: func(context.Context, *jobs.IndexJob) error { return tt.publishErr }}

			p := NewSubmissionPipeline(led, idx, pub, zerolog.Nop())
			state := &PipelineState{Input: tt.input()}
			err := p.Execute(context.Background(), state)

			if tt.wantErrKind != "" {
				if err == nil || !apperr.Is(err, tt.wantErrKind) {
					t.Fatalf("expected %s error, got %v", tt.wantErrKind, err)
				}
				if len(idx.texts) != 0 {
					t.Error("nothing may be indexed when the pipeline fails")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(led.appended) != tt.wantLedger {
				t.Errorf("ledger entries = %d, want %d", len(led.appended), tt.wantLedger)
			}
			if state.Indexed != tt.wantIndexed {
				t.Errorf("Indexed = %v, want %v", state.Indexed, tt.wantIndexed)
			}
			if (state.RetryJobID != "") != tt.wantJob {
				t.Errorf("RetryJobID = %q, wantJob %v", state.RetryJobID, tt.wantJob)
			}
			if tt.indexErr != nil && state.IndexErr == nil {
				t.Error("expected IndexErr to be recorded")
			}
		})
	}
}

func TestSubmissionPipeline_NormalizesBeforeIndexing(t *testing.T) {
	led := &MockLedger{}
	idx := &MockIndexer{}
	p := NewSubmissionPipeline(led, idx, nil, zerolog.Nop())

	state := &PipelineState{Input: input()}
	if err := p.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := "50 expense groceries weekly  shop"
	if len(idx.texts) != 1 || idx.texts[0] != want {
		t.Errorf("indexed texts = %q, want %q", idx.texts, want)
	}
	if led.appended[0].TransactionType != "expense" {
		t.Errorf("transaction type = %q", led.appended[0].TransactionType)
	}
}

func TestValidateStep_UsesClock(t *testing.T) {
	fixed := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)
	state := &PipelineState{Input: input()}

	if err := (&ValidateStep{Now: func() time.Time { return fixed }}).Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !state.Transaction.RecordedAt.Equal(fixed) {
		t.Errorf("RecordedAt = %s", state.Transaction.RecordedAt)
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  groceries ", "groceries"},
		{"eating   out", "eating out"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeLabel(tt.in); got != tt.want {
			t.Errorf("normalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPipeline_StopsAtFirstError(t *testing.T) {
	ran := 0
	step := stepFunc(func(ctx context.Context, s *PipelineState) error { ran++; return nil })
	failing := stepFunc(func(ctx context.Context, s *PipelineState) error { return errors.New("boom") })

	err := NewPipeline(step, failing, step).Execute(context.Background(), &PipelineState{})
	if err == nil || err.Error() != "pipeline step 2 failed: boom" {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran != 1 {
		t.Errorf("ran = %d, want 1", ran)
	}
}

type stepFunc func(ctx context.Context, s *PipelineState) error

func (f stepFunc) Execute(ctx context.Context, s *PipelineState) error { return f(ctx, s) }
