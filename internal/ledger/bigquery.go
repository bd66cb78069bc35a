package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/domain"
)

// TransactionRow is the BigQuery shape of a ledger entry.
type TransactionRow struct {
	TransactionID   string    `bigquery:"transaction_id"`
	UserID          string    `bigquery:"user_id"`
	Amount          *big.Rat  `bigquery:"amount"` // NUMERIC
	TransactionType string    `bigquery:"transaction_type"`
	Category        string    `bigquery:"category"`
	Description     string    `bigquery:"description"`
	RecordedAt      time.Time `bigquery:"recorded_at"`
}

// BigQueryLog keeps every user's ledger in one table, partitioned by
// user_id in queries only.
type BigQueryLog struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
}

// NewBigQueryLogWithClient uses a shared BigQuery client.
func NewBigQueryLogWithClient(client *bigquery.Client, project, dataset, table string) *BigQueryLog {
	return &BigQueryLog{client: client, project: project, dataset: dataset, table: table}
}

func (l *BigQueryLog) tableRef() *bigquery.Table {
	return l.client.DatasetInProject(l.project, l.dataset).Table(l.table)
}

// EnsureTable creates the ledger table if it does not exist yet.
func (l *BigQueryLog) EnsureTable(ctx context.Context) error {
	t := l.tableRef()
	_, err := t.Metadata(ctx)
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusNotFound {
		return fmt.Errorf("EnsureTable: reading metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}
	if err := t.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}
	return nil
}

// Append inserts one row with the streaming inserter.
func (l *BigQueryLog) Append(ctx context.Context, tx *domain.Transaction) error {
	const op = "BigQueryLog.Append"
	if err := checkAppend(op, tx); err != nil {
		return err
	}

	if err := l.tableRef().Inserter().Put(ctx, []*TransactionRow{toRow(tx)}); err != nil {
		return apperr.E(apperr.KindLedger, op, "insert transaction", err)
	}
	return nil
}

// List reads the user's rows ordered by time of recording.
func (l *BigQueryLog) List(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	const op = "BigQueryLog.List"
	if err := domain.CheckUserID(op, userID); err != nil {
		return nil, err
	}

	q := l.client.Query(listQuery(l.project, l.dataset, l.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, apperr.E(apperr.KindLedger, op, "query transactions", err)
	}

	txs := []*domain.Transaction{}
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperr.E(apperr.KindLedger, op, "iterate transactions", err)
		}
		tx, err := fromRow(&row)
		if err != nil {
			return nil, apperr.E(apperr.KindLedger, op, "decode transaction row", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func listQuery(project, dataset, table string) string {
	return fmt.Sprintf(`
		SELECT transaction_id, user_id, amount, transaction_type, category, description, recorded_at
		FROM `+"`%s.%s.%s`"+`
		WHERE user_id = @user_id
		ORDER BY recorded_at, transaction_id`, project, dataset, table)
}

func toRow(tx *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		Amount:          tx.Amount.Rat(),
		TransactionType: tx.TransactionType,
		Category:        tx.Category,
		Description:     tx.Description,
		RecordedAt:      tx.RecordedAt,
	}
}

func fromRow(row *TransactionRow) (*domain.Transaction, error) {
	amount := decimal.Zero
	if row.Amount != nil {
		// NUMERIC has scale 9.
		d, err := decimal.NewFromString(row.Amount.FloatString(9))
		if err != nil {
			return nil, fmt.Errorf("amount %s: %w", row.Amount.String(), err)
		}
		amount = d
	}
	return &domain.Transaction{
		ID:              row.TransactionID,
		UserID:          row.UserID,
		Amount:          amount,
		TransactionType: row.TransactionType,
		Category:        row.Category,
		Description:     row.Description,
		RecordedAt:      row.RecordedAt.UTC(),
	}, nil
}

var _ Log = (*BigQueryLog)(nil)
