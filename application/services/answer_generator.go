package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"labsos-backend/application/ports"
	"labsos-backend/domain/tree"
)

const systemInstruction = `You answer questions about a single experiment tree from a lab workspace.
Use only the tree context supplied with the question. Refer to blocks and nodes by name.
If the context does not contain the answer, say so plainly instead of guessing.
Keep answers concise and use Markdown lists for multi-step procedures.`

// GenerationError is an upstream text-generation failure. It is recovered
// into a placeholder answer rather than failing the request.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("answer generation failed: %v", e.Err)
	}
	return fmt.Sprintf("answer generation with %s failed: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// PlaceholderAnswer is the user visible answer when generation failed.
func PlaceholderAnswer(err error) string {
	return fmt.Sprintf("I found the relevant parts of this tree but could not generate an answer right now (%v). The context used is included below; please try again in a moment.", err)
}

// GeneratorSettings are the sampling parameters of an answer.
type GeneratorSettings struct {
	Temperature     float32
	MaxOutputTokens int32
	MaxHistory      int
}

// AnswerGenerator turns a context payload and a question into an answer.
type AnswerGenerator struct {
	generator ports.TextGenerator
	settings  GeneratorSettings
	logger    *zap.Logger
}

// NewAnswerGenerator creates a new answer generator
func NewAnswerGenerator(generator ports.TextGenerator, settings GeneratorSettings, logger *zap.Logger) *AnswerGenerator {
	return &AnswerGenerator{
		generator: generator,
		settings:  settings,
		logger:    logger,
	}
}

// Configured reports whether a text generator is wired in.
func (g *AnswerGenerator) Configured() bool {
	return g != nil && g.generator != nil
}

// Generate answers query from payload and the prior conversation. Failures
// are *GenerationError.
func (g *AnswerGenerator) Generate(ctx context.Context, query string, payload *tree.ContextPayload, history []ports.ChatMessage) (string, error) {
	if !g.Configured() {
		return "", &GenerationError{Err: fmt.Errorf("no text generator configured")}
	}

	if max := g.settings.MaxHistory; max > 0 && len(history) > max {
		history = history[len(history)-max:]
	}

	req := ports.GenerationRequest{
		SystemInstruction: systemInstruction,
		History:           history,
		Prompt:            BuildPrompt(query, payload),
		Temperature:       g.settings.Temperature,
		MaxOutputTokens:   g.settings.MaxOutputTokens,
	}

	answer, err := g.generator.Generate(ctx, req)
	if err != nil {
		g.logger.Error("Answer generation failed",
			zap.String("model", g.generator.Model()),
			zap.String("treeID", payload.Tree.ID),
			zap.Error(err),
		)
		return "", &GenerationError{Model: g.generator.Model(), Err: err}
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", &GenerationError{Model: g.generator.Model(), Err: fmt.Errorf("empty response")}
	}
	return answer, nil
}

// BuildPrompt renders the tree context followed by the question.
func BuildPrompt(query string, payload *tree.ContextPayload) string {
	var b strings.Builder
	b.WriteString(FormatContext(payload))
	b.WriteString("\n## Question\n")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n")
	return b.String()
}

// FormatContext renders a payload as Markdown.
func FormatContext(payload *tree.ContextPayload) string {
	var b strings.Builder
	if payload == nil {
		return "# Tree\n(no context)\n"
	}

	fmt.Fprintf(&b, "# Tree: %s\n", payload.Tree.Name)
	if payload.Tree.Description != "" {
		fmt.Fprintf(&b, "%s\n", payload.Tree.Description)
	}

	for _, block := range payload.Blocks {
		fmt.Fprintf(&b, "\n## Block: %s\n", block.Name)
		for i, n := range block.Nodes {
			fmt.Fprintf(&b, "\n### %d. %s\n", i+1, n.Title)
			if n.Description != "" {
				fmt.Fprintf(&b, "%s\n", n.Description)
			}
			if n.Content != "" {
				fmt.Fprintf(&b, "\n%s\n", n.Content)
			}
			for _, a := range n.Attachments {
				fmt.Fprintf(&b, "- attachment: %s\n", a.Name)
			}
			for _, l := range n.Links {
				fmt.Fprintf(&b, "- link: %s (%s)\n", l.Title, l.URL)
			}
		}
	}
	return b.String()
}
