package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/domain"
)

func newTx(userID, id, category string, amount int64) *domain.Transaction {
	return &domain.Transaction{
		ID:              id,
		UserID:          userID,
		Amount:          decimal.NewFromInt(amount),
		TransactionType: "expense",
		Category:        category,
		Description:     "test " + id,
		RecordedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFileLog_AppendAndList(t *testing.T) {
	ctx := context.Background()
	l := NewFileLog(t.TempDir(), zerolog.Nop())

	require.NoError(t, l.Append(ctx, newTx("u1", "t1", "groceries", 50)))
	require.NoError(t, l.Append(ctx, newTx("u1", "t2", "rent", 900)))
	require.NoError(t, l.Append(ctx, newTx("u2", "t3", "fuel", 40)))

	txs, err := l.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, "t2", txs[1].ID)
	assert.True(t, decimal.NewFromInt(900).Equal(txs[1].Amount))
	assert.Equal(t, "900 expense rent test t2", txs[1].Text())

	other, err := l.List(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestFileLog_ListUnknownUserIsEmpty(t *testing.T) {
	l := NewFileLog(t.TempDir(), zerolog.Nop())

	txs, err := l.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}

func TestFileLog_SkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l := NewFileLog(root, zerolog.Nop())

	require.NoError(t, l.Append(ctx, newTx("u1", "t1", "groceries", 50)))

	f, err := os.OpenFile(filepath.Join(root, "u1", FileName), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, l.Append(ctx, newTx("u1", "t2", "rent", 900)))

	txs, err := l.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t2", txs[1].ID)
}

func TestFileLog_AppendRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l := NewFileLog(root, zerolog.Nop())

	tests := []struct {
		name string
		tx   *domain.Transaction
	}{
		{"nil", nil},
		{"no user", newTx("", "t1", "x", 1)},
		{"traversal", newTx("..", "t1", "x", 1)},
		{"no id", newTx("u1", "", "x", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Append(ctx, tt.tx)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing may be written for rejected transactions")
}

func TestFileLog_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	l := NewFileLog(t.TempDir(), zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Append(ctx, newTx("u1", fmt.Sprintf("t%d", i), "misc", int64(i))))
		}(i)
	}
	wg.Wait()

	txs, err := l.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, txs, 50)

	seen := map[string]bool{}
	for _, tx := range txs {
		assert.False(t, seen[tx.ID], "duplicate %s", tx.ID)
		seen[tx.ID] = true
	}
}
