package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/classifier"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/gateway"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/metrics"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// QueryResult is the outcome of HandleQuery. On success Question echoes
// the asked message and Answer holds the reply; on failure only Detail is
// set.
type QueryResult struct {
	Status   string      `json:"status"`
	Question string      `json:"question,omitempty"`
	Answer   string      `json:"answer,omitempty"`
	Intent   string      `json:"intent,omitempty"`
	Detail   string      `json:"detail,omitempty"`
	Kind     apperr.Kind `json:"-"`
}

// OK reports whether the query succeeded.
func (r QueryResult) OK() bool { return r.Status == StatusSuccess }

func failure(err error) QueryResult {
	return QueryResult{
		Status: StatusFailure,
		Detail: apperr.Detail(err),
		Kind:   apperr.KindOf(err),
	}
}

// HandleQuery answers the last message of conv for userID. It never
// returns an error or panics: every failure becomes a failure result.
func (s *Service) HandleQuery(ctx context.Context, userID string, conv domain.Conversation) (result QueryResult) {
	log := logger.ForUser(s.log, userID)
	start := time.Now()
	intent := classifier.Unknown

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Query handler panicked")
			result = failure(apperr.E(apperr.KindInternal, "Service.HandleQuery", "", fmt.Errorf("panic: %v", r)))
		}
		metrics.QueriesTotal.WithLabelValues(intent.String(), result.Status).Inc()
		ev := log.Info()
		if !result.OK() {
			ev = log.Warn().Str("kind", string(result.Kind)).Str("detail", result.Detail)
		}
		ev.Str("intent", intent.String()).Dur("duration", time.Since(start)).Msg("Query handled")
	}()

	conv, question, err := checkQuery(userID, conv)
	if err != nil {
		return failure(err)
	}

	intent, err = s.classifier.Classify(ctx, question)
	if err != nil {
		return failure(err)
	}

	var answer string
	switch intent {
	case classifier.PersonalBudgeting:
		answer, err = s.answerBudgeting(ctx, userID, question)
	case classifier.FinancialEducation:
		answer, err = s.answerEducation(ctx, conv)
	default:
		log.Debug().Str("question", question).Msg("Unclassified question, answering as education")
		answer, err = s.answerEducation(ctx, conv)
	}
	if err != nil {
		return failure(err)
	}

	return QueryResult{
		Status:   StatusSuccess,
		Question: question,
		Answer:   answer,
		Intent:   intent.String(),
	}
}

func checkQuery(userID string, conv domain.Conversation) (domain.Conversation, string, error) {
	const op = "Service.HandleQuery"
	if err := domain.CheckUserID(op, userID); err != nil {
		return nil, "", err
	}
	if len(conv) == 0 {
		return nil, "", apperr.E(apperr.KindValidation, op, "conversation is required", nil)
	}
	conv, ok := conv.Normalize()
	if !ok {
		return nil, "", apperr.E(apperr.KindValidation, op, "conversation has a message with an unknown role", nil)
	}
	last, _ := conv.Last()
	if last.Role == domain.RoleSystem {
		return nil, "", apperr.E(apperr.KindValidation, op, "the last message must not be a system message", nil)
	}
	if strings.TrimSpace(last.Content) == "" {
		return nil, "", apperr.E(apperr.KindValidation, op, "the last message has no content", nil)
	}
	return conv, last.Content, nil
}

func (s *Service) answerEducation(ctx context.Context, conv domain.Conversation) (string, error) {
	return s.generate(ctx, s.assembler.Education(conv))
}

func (s *Service) answerBudgeting(ctx context.Context, userID, question string) (string, error) {
	docs, err := s.index.RetrieveAll(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.generate(ctx, s.assembler.Budgeting(question, docs))
}

func (s *Service) generate(ctx context.Context, p gateway.Prompt) (string, error) {
	start := time.Now()
	defer func() { metrics.GenerationDuration.Observe(time.Since(start).Seconds()) }()
	return s.generator.Generate(ctx, p)
}
