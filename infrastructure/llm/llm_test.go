package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"labsos-backend/application/ports"
)

type flakyGenerator struct {
	calls int
	err   error
}

func (g *flakyGenerator) Model() string { return "flaky" }

func (g *flakyGenerator) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return "ok", nil
}

type flakyEmbedder struct {
	calls int
	err   error
}

func (e *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0}, nil
}

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{Name: "test", MaxRequests: 1, Timeout: time.Minute, Failures: 3}
}

func TestBreakerGenerator_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &flakyGenerator{err: errors.New("upstream 503")}
	g := NewBreakerGenerator(next, testBreakerConfig(), zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), ports.GenerationRequest{Prompt: "q"})
		assert.EqualError(t, err, "upstream 503")
	}

	_, err := g.Generate(context.Background(), ports.GenerationRequest{Prompt: "q"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls, "open breaker must not reach upstream")
	assert.Equal(t, "flaky", g.Model())
}

func TestBreakerGenerator_PassesThroughSuccess(t *testing.T) {
	g := NewBreakerGenerator(&flakyGenerator{}, testBreakerConfig(), zap.NewNop())

	out, err := g.Generate(context.Background(), ports.GenerationRequest{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestBreakerGenerator_CanceledCallerDoesNotTrip(t *testing.T) {
	next := &flakyGenerator{err: context.Canceled}
	g := NewBreakerGenerator(next, testBreakerConfig(), zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := g.Generate(context.Background(), ports.GenerationRequest{})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, 5, next.calls)
}

func TestBreakerEmbedder(t *testing.T) {
	next := &flakyEmbedder{}
	e := NewBreakerEmbedder(next, testBreakerConfig(), zap.NewNop())

	vec, err := e.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)

	next.err = errors.New("quota exceeded")
	for i := 0; i < 3; i++ {
		_, err = e.Embed(context.Background(), "x")
		assert.Error(t, err)
	}
	_, err = e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	e := HashEmbedder{Dimensions: 64}

	a, err := e.Embed(ctx, "Centrifuge the sample at 4C")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "centrifuge sample")
	require.NoError(t, err)
	again, err := e.Embed(ctx, "Centrifuge the sample at 4C")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, again)

	var dot, norm float32
	for i := range a {
		dot += a[i] * b[i]
		norm += a[i] * a[i]
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
	assert.Greater(t, dot, float32(0.5))

	empty, err := e.Embed(ctx, "  ")
	require.NoError(t, err)
	assert.Len(t, empty, 64)
}

func TestEchoGenerator(t *testing.T) {
	g := EchoGenerator{}

	out, err := g.Generate(context.Background(), ports.GenerationRequest{
		Prompt: "# Tree: T\n## Block: B\n### 1. Lyse cells\n### 2. Spin down\n## Question\nwhat?",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "2 nodes")
	assert.Contains(t, out, "Lyse cells")

	out, err = g.Generate(context.Background(), ports.GenerationRequest{Prompt: "## Question\nwhat?"})
	require.NoError(t, err)
	assert.Contains(t, out, "No nodes")
}

func TestNewGenAIClient_RequiresKey(t *testing.T) {
	_, err := NewGenAIClient(context.Background(), "")
	assert.Error(t, err)
}
