// Package classifier maps a free-text question to the handler that should
// answer it.
package classifier

import (
	"strings"
	"unicode"
)

// Intent is the closed set of question categories. Unknown is a real
// value: it is what any unrecognized label parses to, and the router
// sends it down the default path.
type Intent int

const (
	Unknown Intent = iota
	FinancialEducation
	PersonalBudgeting
)

func (i Intent) String() string {
	switch i {
	case FinancialEducation:
		return "financial education"
	case PersonalBudgeting:
		return "personal budgeting"
	default:
		return "unknown"
	}
}

// MarshalText lets Intent appear as its label in JSON and logs.
func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// Labels are the category names offered to the model.
var Labels = []string{FinancialEducation.String(), PersonalBudgeting.String()}

var aliases = map[string]Intent{
	"financial education": FinancialEducation,
	"education":           FinancialEducation,
	"personal budgeting":  PersonalBudgeting,
	"budgeting":           PersonalBudgeting,
}

// Parse normalizes a classifier label (trim, case-fold, strip quotes and
// punctuation, collapse separators) and maps it onto an Intent. Anything
// else, including the empty string, is Unknown.
func Parse(label string) Intent {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
	})
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")

	if intent, ok := aliases[s]; ok {
		return intent
	}
	return Unknown
}
