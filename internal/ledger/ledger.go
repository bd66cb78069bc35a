// Package ledger is the append-only record of each user's transactions.
package ledger

import (
	"context"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Log appends transactions and lists them back in insertion order. There
// is deliberately no update or delete.
type Log interface {
	Append(ctx context.Context, tx *domain.Transaction) error
	List(ctx context.Context, userID string) ([]*domain.Transaction, error)
}

func checkAppend(op string, tx *domain.Transaction) error {
	if tx == nil {
		return apperr.E(apperr.KindValidation, op, "transaction is required", nil)
	}
	if err := domain.CheckUserID(op, tx.UserID); err != nil {
		return err
	}
	if tx.ID == "" {
		return apperr.E(apperr.KindValidation, op, "transaction id is required", nil)
	}
	return nil
}
