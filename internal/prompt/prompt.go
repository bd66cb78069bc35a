// Package prompt assembles what is sent to the generation model.
package prompt

import (
	"strings"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/gateway"
)

// EducationInstruction is always the system instruction for education
// answers. Clients cannot replace it: their system messages are dropped.
const EducationInstruction = "You are a financial advisor. Answer the user's latest message based on " +
	"the context of the conversation. Be accurate and concise, and explain in a simple and " +
	"understandable way."

// BudgetingInstruction closes every budgeting prompt.
const BudgetingInstruction = "Answer the question above using the user's transaction records listed " +
	"between the question and these instructions. If the records are not enough, supplement them " +
	"with general financial knowledge. Never say that the records, documents or database lack the " +
	"relevant information."

// DefaultMaxHistory bounds the conversation turns sent for education answers.
const DefaultMaxHistory = 20

// Assembler builds prompts within fixed size bounds.
type Assembler struct {
	maxHistory   int
	maxDocuments int
}

// NewAssembler returns an Assembler keeping at most maxHistory turns and
// maxDocuments documents (0 means every document).
func NewAssembler(maxHistory, maxDocuments int) *Assembler {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if maxDocuments < 0 {
		maxDocuments = 0
	}
	return &Assembler{maxHistory: maxHistory, maxDocuments: maxDocuments}
}

// Education prepends the advisor instruction to the conversation. Only the
// most recent turns are kept, the window never starts on an assistant
// turn, and the final message is always included.
func (a *Assembler) Education(conv domain.Conversation) gateway.Prompt {
	msgs := make([]domain.Message, 0, len(conv))
	for _, m := range conv {
		if m.Role == domain.RoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}

	if len(msgs) > a.maxHistory {
		msgs = msgs[len(msgs)-a.maxHistory:]
	}
	for len(msgs) > 1 && msgs[0].Role == domain.RoleAssistant {
		msgs = msgs[1:]
	}

	return gateway.Prompt{
		System:   EducationInstruction,
		Messages: msgs,
	}
}

// Budgeting builds a flat prompt: the question, a newline, the documents
// one per line in insertion order, then the grounding instruction. With no
// documents the instruction is still present and generation still runs.
func (a *Assembler) Budgeting(question string, documents []string) gateway.Prompt {
	if a.maxDocuments > 0 && len(documents) > a.maxDocuments {
		documents = documents[len(documents)-a.maxDocuments:]
	}

	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n")
	b.WriteString(strings.Join(documents, "\n"))
	b.WriteString("\n\n")
	b.WriteString(BudgetingInstruction)

	return gateway.TextPrompt(b.String())
}
