package pipeline

import (
	"strings"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// normalizeLabel trims and collapses inner whitespace.
func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeTransaction(tx *domain.Transaction) {
	tx.TransactionType = normalizeLabel(tx.TransactionType)
	tx.Category = normalizeLabel(tx.Category)
	tx.Description = strings.TrimSpace(tx.Description)
}
