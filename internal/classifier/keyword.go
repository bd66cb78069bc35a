package classifier

import (
	"context"
	"strings"
	"unicode"
)

var personalMarkers = map[string]bool{
	"i": true, "me": true, "my": true, "mine": true, "myself": true,
	"we": true, "us": true, "our": true, "ours": true,
}

var moneyTerms = map[string]bool{
	"spend": true, "spent": true, "spending": true, "budget": true, "budgeting": true,
	"expense": true, "expenses": true, "paid": true, "pay": true, "bought": true,
	"cost": true, "costs": true, "income": true, "earned": true, "salary": true,
	"save": true, "saved": true, "saving": true, "savings": true, "transaction": true,
	"transactions": true, "purchase": true, "purchases": true, "bill": true, "bills": true,
	"afford": true, "owe": true, "balance": true,
}

// KeywordClassifier needs no model: a question is personal budgeting when
// it is about the asker ("I", "my", "our") and about money moving. Every
// other question is financial education.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(_ context.Context, question string) (Intent, error) {
	var personal, money bool
	for _, w := range words(question) {
		personal = personal || personalMarkers[w]
		money = money || moneyTerms[w]
	}
	if personal && money {
		return PersonalBudgeting, nil
	}
	return FinancialEducation, nil
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

var _ Classifier = KeywordClassifier{}
