package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/gateway"
)

// Classifier assigns an Intent to a question. Ambiguity is reported as
// Unknown, never as an error.
type Classifier interface {
	Classify(ctx context.Context, question string) (Intent, error)
}

const classifyPrompt = "Classify the following question into exactly one of these categories: %s.\n" +
	"Use \"personal budgeting\" when the question is about the asker's own spending, income, " +
	"transactions or budget. Use \"financial education\" for general finance concepts.\n" +
	"Answer with the category name only.\n\n" +
	"Question: %s"

// ModelClassifier asks the generation model for a label.
type ModelClassifier struct {
	gen      gateway.Generator
	fallback Classifier
	log      zerolog.Logger
}

// NewModelClassifier creates a model-backed classifier. When fallback is
// non-nil it is used if the model cannot be reached.
func NewModelClassifier(gen gateway.Generator, fallback Classifier, log zerolog.Logger) *ModelClassifier {
	return &ModelClassifier{gen: gen, fallback: fallback, log: log}
}

func (c *ModelClassifier) Classify(ctx context.Context, question string) (Intent, error) {
	prompt := fmt.Sprintf(classifyPrompt, strings.Join(Labels, ", "), question)

	label, err := c.gen.Generate(ctx, gateway.TextPrompt(prompt))
	switch {
	case apperr.Is(err, apperr.KindGenerationEmpty):
		c.log.Warn().Msg("Classifier model returned no label")
		return Unknown, nil
	case err != nil && c.fallback != nil:
		c.log.Warn().Err(err).Msg("Classifier model unavailable, using fallback")
		return c.fallback.Classify(ctx, question)
	case err != nil:
		return Unknown, err
	}

	intent := Parse(label)
	if intent == Unknown {
		c.log.Info().Str("label", label).Msg("Unrecognized classification label")
	}
	return intent, nil
}

var _ Classifier = (*ModelClassifier)(nil)
