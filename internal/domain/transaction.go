package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionInput is a transaction as submitted by a client. The optional
// fields are pointers so that an absent field can be told apart from an
// empty one: every field must be present for the transaction to be accepted.
type TransactionInput struct {
	UserID          string           `json:"user_id" validate:"required,userid"`
	Amount          *decimal.Decimal `json:"amount" validate:"required"`
	TransactionType *string          `json:"transaction_type" validate:"required"`
	Category        *string          `json:"category" validate:"required"`
	Description     *string          `json:"description" validate:"required"`
}

// Transaction is one accepted record in a user's ledger. It is never
// mutated after it has been appended.
type Transaction struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType string          `json:"transaction_type"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	RecordedAt      time.Time       `json:"recorded_at"`
}

// NewTransaction validates the input and stamps it with an ID and time.
func NewTransaction(in TransactionInput, now time.Time) (*Transaction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &Transaction{
		ID:              uuid.New().String(),
		UserID:          in.UserID,
		Amount:          *in.Amount,
		TransactionType: *in.TransactionType,
		Category:        *in.Category,
		Description:     *in.Description,
		RecordedAt:      now.UTC(),
	}, nil
}

// Text is the document form of a transaction: amount, type, category and
// description joined by single spaces. It is what gets embedded and what
// budgeting answers read back.
func (t *Transaction) Text() string {
	return strings.Join([]string{
		t.Amount.String(),
		t.TransactionType,
		t.Category,
		t.Description,
	}, " ")
}
