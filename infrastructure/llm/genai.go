// Package llm adapts language model services to the embedder and text
// generator ports.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"labsos-backend/application/ports"
)

// GenAIConfig configures the Gemini client
type GenAIConfig struct {
	APIKey              string
	GenerationModel     string
	EmbeddingModel      string
	EmbeddingDimensions int
	Timeout             time.Duration
}

// NewGenAIClient creates a Gemini API client
func NewGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client, nil
}

// GenAIGenerator generates answers with a Gemini model.
type GenAIGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ ports.TextGenerator = (*GenAIGenerator)(nil)

// NewGenAIGenerator creates a new generator
func NewGenAIGenerator(client *genai.Client, cfg GenAIConfig) *GenAIGenerator {
	return &GenAIGenerator{
		client:  client,
		model:   cfg.GenerationModel,
		timeout: cfg.Timeout,
	}
}

// Model returns the model name
func (g *GenAIGenerator) Model() string {
	return g.model
}

// Generate sends the history and prompt as one conversation.
func (g *GenAIGenerator) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == ports.ChatRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", errors.New("GenAI returned no text")
	}
	return text, nil
}

// GenAIEmbedder embeds queries with a Gemini embedding model.
type GenAIEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int32
}

var _ ports.Embedder = (*GenAIEmbedder)(nil)

// NewGenAIEmbedder creates a new embedder. Dimensions must match the stored
// node embeddings.
func NewGenAIEmbedder(client *genai.Client, cfg GenAIConfig) *GenAIEmbedder {
	return &GenAIEmbedder{
		client:     client,
		model:      cfg.EmbeddingModel,
		dimensions: int32(cfg.EmbeddingDimensions),
	}
}

// Embed generates an embedding for a single query.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	config := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_QUERY"}
	if e.dimensions > 0 {
		config.OutputDimensionality = genai.Ptr(e.dimensions)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}

	if len(result.Embeddings) == 0 {
		return nil, errors.New("no embeddings returned")
	}

	return result.Embeddings[0].Values, nil
}
