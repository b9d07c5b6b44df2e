package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"labsos-backend/application/ports"
)

// HashEmbedder is a deterministic bag-of-words embedder for offline use.
// Each token is hashed into one of Dimensions buckets and the vector is
// normalised, so texts sharing words score a positive cosine similarity.
type HashEmbedder struct {
	Dimensions int
}

var _ ports.Embedder = HashEmbedder{}

// Embed implements ports.Embedder
func (e HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dims := e.Dimensions
	if dims <= 0 {
		dims = 256
	}
	vec := make([]float32, dims)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// EchoGenerator answers without a model by listing the context it was
// given. Used by the offline CLI and local development.
type EchoGenerator struct{}

var _ ports.TextGenerator = EchoGenerator{}

func (EchoGenerator) Model() string { return "echo" }

// Generate implements ports.TextGenerator
func (EchoGenerator) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	var titles []string
	for _, line := range strings.Split(req.Prompt, "\n") {
		if strings.HasPrefix(line, "### ") {
			titles = append(titles, strings.TrimPrefix(line, "### "))
		}
	}
	if len(titles) == 0 {
		return "No nodes were available to answer from.", nil
	}
	return fmt.Sprintf("Answer drawn from %d nodes:\n- %s", len(titles), strings.Join(titles, "\n- ")), nil
}
