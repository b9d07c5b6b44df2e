package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"labsos-backend/application/ports"
	"labsos-backend/application/queries"
	querybus "labsos-backend/application/queries/bus"
	apperrors "labsos-backend/pkg/errors"
)

// maxSearchBody bounds the POST body: 10 history messages of 4000
// characters plus the query, with room for JSON overhead.
const maxSearchBody = 256 << 10

// AISearchHandler serves GET and POST ai-search requests
type AISearchHandler struct {
	queryBus *querybus.QueryBus
	errors   *apperrors.ErrorHandler
	logger   *zap.Logger
}

// NewAISearchHandler creates a new ai-search handler
func NewAISearchHandler(queryBus *querybus.QueryBus, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) *AISearchHandler {
	return &AISearchHandler{
		queryBus: queryBus,
		errors:   errorHandler,
		logger:   logger,
	}
}

// AISearchRequest is the POST body. Both field spellings used by the web
// client are accepted.
type AISearchRequest struct {
	Query               string              `json:"query"`
	Q                   string              `json:"q"`
	Messages            []ports.ChatMessage `json:"messages"`
	ConversationHistory []ports.ChatMessage `json:"conversationHistory"`
}

func (r AISearchRequest) question() string {
	if r.Query != "" {
		return r.Query
	}
	return r.Q
}

func (r AISearchRequest) history() []ports.ChatMessage {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return r.ConversationHistory
}

// Search handles GET|POST /trees/{treeID}/ai-search
func (h *AISearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req AISearchRequest

	switch r.Method {
	case http.MethodPost:
		if err := json.NewDecoder(io.LimitReader(r.Body, maxSearchBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, r, h.errors, apperrors.NewValidationError("Invalid request body").WithCause(err))
			return
		}
		if req.question() == "" {
			req.Q = r.URL.Query().Get("q")
			req.Query = r.URL.Query().Get("query")
		}
	default:
		req.Query = r.URL.Query().Get("query")
		req.Q = r.URL.Query().Get("q")
	}

	q := queries.AISearchQuery{
		TreeID:   chi.URLParam(r, "treeID"),
		Query:    req.question(),
		History:  queries.NormalizeHistory(req.history()),
		Token:    r.Header.Get("Authorization"),
		ClientIP: clientIP(r),
	}

	result, err := h.queryBus.Ask(r.Context(), q)
	if err != nil {
		respondError(w, r, h.errors, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, result)
}
