package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

// TransactionService records and lists transactions.
type TransactionService interface {
	SubmitTransaction(ctx context.Context, in domain.TransactionInput) (*assistant.Receipt, error)
	ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error)
}

// QueryService answers questions.
type QueryService interface {
	HandleQuery(ctx context.Context, userID string, conv domain.Conversation) assistant.QueryResult
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	svc TransactionService
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc TransactionService, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		svc: svc,
		log: log,
	}
}

// SubmitTransaction handles POST /api/transactions. It answers 201 when
// the transaction is indexed and 202 when it is recorded but indexing is
// still pending.
func (h *TransactionsHandler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var in domain.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.svc.SubmitTransaction(r.Context(), in)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to submit transaction")
		middleware.WriteAppError(w, err)
		return
	}

	status := http.StatusCreated
	if !receipt.Indexed {
		status = http.StatusAccepted
	}
	middleware.WriteJSON(w, status, receipt)
}

// ListTransactions handles GET /api/users/{userID}/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	transactions, err := h.svc.ListTransactions(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list transactions")
		middleware.WriteAppError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// QueryHandler handles question answering.
type QueryHandler struct {
	svc QueryService
	log zerolog.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(svc QueryService, log zerolog.Logger) *QueryHandler {
	return &QueryHandler{
		svc: svc,
		log: log,
	}
}

type queryRequest struct {
	UserID       string              `json:"user_id"`
	Conversation domain.Conversation `json:"conversation"`
	// Question is the single-turn form: it is used as the whole
	// conversation when Conversation is empty.
	Question string `json:"question"`
}

// HandleQuery handles POST /api/query
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conv := req.Conversation
	if len(conv) == 0 && strings.TrimSpace(req.Question) != "" {
		conv = domain.Conversation{{Role: domain.RoleUser, Content: req.Question}}
	}

	result := h.svc.HandleQuery(r.Context(), req.UserID, conv)
	if !result.OK() {
		middleware.WriteJSON(w, result.Kind.HTTPStatus(), result)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{jobID}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteAppError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteAppError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
