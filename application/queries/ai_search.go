package queries

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"labsos-backend/application/ports"
	"labsos-backend/domain/search"
	"labsos-backend/domain/tree"
	apperrors "labsos-backend/pkg/errors"
)

const (
	// MaxHistoryMessages is how many prior messages are forwarded.
	MaxHistoryMessages = 10
	// MaxMessageChars caps each forwarded message.
	MaxMessageChars = 4000
	// MaxQueryChars caps the question itself.
	MaxQueryChars = 2000
)

var validate = validator.New()

// AISearchQuery asks a question about one tree.
type AISearchQuery struct {
	TreeID   string              `json:"tree_id" validate:"required"`
	Query    string              `json:"query" validate:"required,max=2000"`
	History  []ports.ChatMessage `json:"history" validate:"max=10,dive"`
	Token    string              `json:"-"`
	ClientIP string              `json:"-"`
}

// Validate implements bus.Query. Failures are validation AppErrors.
func (q AISearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return apperrors.NewValidationError("Query is required")
	}
	if err := validate.Struct(q); err != nil {
		return apperrors.NewValidationError("Invalid search request").WithCause(err)
	}
	return nil
}

// NormalizeHistory keeps the last MaxHistoryMessages well-formed messages,
// each cut to MaxMessageChars. Messages with an unknown role or no content
// are dropped.
func NormalizeHistory(in []ports.ChatMessage) []ports.ChatMessage {
	out := make([]ports.ChatMessage, 0, len(in))
	for _, m := range in {
		if m.Role != ports.ChatRoleUser && m.Role != ports.ChatRoleAssistant {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if utf8.RuneCountInString(content) > MaxMessageChars {
			content = string([]rune(content)[:MaxMessageChars])
		}
		out = append(out, ports.ChatMessage{Role: m.Role, Content: content})
	}
	if len(out) > MaxHistoryMessages {
		out = out[len(out)-MaxHistoryMessages:]
	}
	return out
}

// HistoryChars is the total content length of history.
func HistoryChars(history []ports.ChatMessage) int {
	total := 0
	for _, m := range history {
		total += len(m.Content)
	}
	return total
}

// AISearchResult is the response body of an answered query.
type AISearchResult struct {
	Query           string               `json:"query"`
	Answer          *string              `json:"answer"`
	AnswerGenerated bool                 `json:"answerGenerated"`
	AnswerError     *string              `json:"answerError"`
	TreeName        string               `json:"tree_name"`
	TreeContext     *tree.ContextPayload `json:"tree_context"`
	Metadata        AISearchMetadata     `json:"metadata"`
}

// AISearchMetadata describes how the answer's context was chosen.
type AISearchMetadata struct {
	UsedSemanticSearch  bool                  `json:"used_semantic_search"`
	ContextStrategy     search.Strategy       `json:"context_strategy"`
	TotalNodes          int                   `json:"total_nodes"`
	ContextNodes        int                   `json:"context_nodes"`
	QueryClassification search.Classification `json:"query_classification"`
	EstimatedCost       float64               `json:"estimated_cost"`
	Timestamp           time.Time             `json:"timestamp"`
}
