package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labsos-backend/application/queries"
	"labsos-backend/domain/search"
	"labsos-backend/pkg/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	out, err := run(t, "classify", "what", "is", "step", "3")
	require.NoError(t, err)

	var got classifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "what is step 3", got.Query)
	assert.Equal(t, search.ClassificationSimple, got.Classification)
	assert.True(t, got.IsSimple)
	assert.Contains(t, got.MatchedRules, "step_reference")
}

func TestAskCommand_Fixture(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")

	out, err := run(t, "ask",
		"--fixture", "../../infrastructure/persistence/memory/testdata/workspace.yaml",
		"--tree", "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa",
		"--echo",
		"--format", "json",
		"list all steps",
	)
	require.NoError(t, err)

	start := strings.Index(out, "{")
	require.GreaterOrEqual(t, start, 0)
	var res queries.AISearchResult
	require.NoError(t, json.Unmarshal([]byte(out[start:]), &res))

	assert.Equal(t, "MTT Assay", res.TreeName)
	assert.True(t, res.AnswerGenerated)
	require.NotNil(t, res.Answer)
	assert.Contains(t, *res.Answer, "Seed cells")
	assert.Equal(t, search.StrategyFullSmallTree, res.Metadata.ContextStrategy)
}

func TestPrintHuman(t *testing.T) {
	answer := "Three steps."
	var out bytes.Buffer
	require.NoError(t, printHuman(&out, &queries.AISearchResult{
		TreeName: "MTT Assay",
		Answer:   &answer,
		Metadata: queries.AISearchMetadata{ContextStrategy: search.StrategySemantic, ContextNodes: 2, TotalNodes: 80},
	}))
	assert.Contains(t, out.String(), "semantic")
	assert.Contains(t, out.String(), "2 of 80 nodes")
	assert.Contains(t, out.String(), "Three steps.")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("SUPABASE_JWT_SECRET", "cli-secret")

	out, err := run(t, "token", "--ttl", "5m", "99999999-9999-4999-8999-999999999999")
	require.NoError(t, err)

	v, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: "cli-secret"})
	require.NoError(t, err)
	claims, err := v.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "99999999-9999-4999-8999-999999999999", claims.UserID)
}
