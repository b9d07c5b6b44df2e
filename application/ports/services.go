package ports

import (
	"context"
	"time"

	"labsos-backend/domain/events"
	"labsos-backend/domain/search"
	"labsos-backend/pkg/auth"
)

// Embedder turns text into a vector in the same space as stored node
// embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChatRole is the speaker of a conversation message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of prior conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role" validate:"required,oneof=user assistant"`
	Content string   `json:"content" validate:"required,max=4000"`
}

// GenerationRequest is a single call to the text-generation service.
type GenerationRequest struct {
	SystemInstruction string
	History           []ChatMessage
	Prompt            string
	Temperature       float32
	MaxOutputTokens   int32
}

// TextGenerator calls an external language model.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Model() string
}

// Principal is an authenticated caller together with a data source scoped
// to that caller.
type Principal struct {
	User        *auth.UserContext
	AccessToken string
	DataSource  TreeDataSource
}

// Authenticator verifies bearer tokens. Failures are *auth.AuthError.
type Authenticator interface {
	Authenticate(ctx context.Context, bearerToken string) (*Principal, error)
}

// Access is the outcome of a permission check on a tree.
type Access struct {
	CanRead  bool
	CanWrite bool
	Role     string
}

// PermissionChecker decides what a user may do with a tree.
type PermissionChecker interface {
	CheckTreeAccess(ctx context.Context, ds TreeDataSource, userID, treeID string) (*Access, error)
}

// EventPublisher publishes integration events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}

// SearchRecord is what gets measured for every answered query.
type SearchRecord struct {
	TreeID         string
	Selected       search.Strategy
	Executed       search.Strategy
	Classification search.Classification
	TotalNodes     int
	ContextNodes   int
	EstimatedCost  float64
	AnswerOK       bool
	Duration       time.Duration
}

// SearchMetrics receives search measurements.
type SearchMetrics interface {
	RecordSearch(ctx context.Context, rec SearchRecord)
	RecordFallback(reason search.Strategy)
	RecordTruncation(dropped int)
}
