package di

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labsos-backend/infrastructure/config"
	"labsos-backend/pkg/auth"
)

const (
	jwtSecret   = "container-test-secret"
	publicTree  = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	privateTree = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
	ownerID     = "99999999-9999-4999-8999-999999999999"
	viewerID    = "88888888-8888-4888-8888-888888888888"
	strangerID  = "77777777-7777-4777-8777-777777777777"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Environment = "test"
	cfg.FixtureFile = "../persistence/memory/testdata/workspace.yaml"
	cfg.JWTSecret = jwtSecret
	cfg.EmbeddingDimensions = 3
	cfg.LogLevel = "error"
	cfg.RateLimitPerMinute = 0
	return cfg
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	container, err := InitializeContainer(context.Background(), testConfig())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	srv := httptest.NewServer(container.Router)
	t.Cleanup(srv.Close)
	return srv
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	v, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: jwtSecret})
	require.NoError(t, err)
	token, err := v.IssueToken(userID, "", time.Hour)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, method, target, token, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func searchURL(base, prefix, treeID, q string) string {
	return base + prefix + "/trees/" + treeID + "/ai-search?q=" + url.QueryEscape(q)
}

func TestContainer_PublicSearch(t *testing.T) {
	srv := newServer(t)

	status, body := do(t, http.MethodGet, searchURL(srv.URL, "/api", publicTree, "list all steps"), "", "")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "list all steps", body["query"])
	assert.Equal(t, "MTT Assay", body["tree_name"])
	assert.Nil(t, body["answer"])
	assert.Equal(t, false, body["answerGenerated"])
	assert.Equal(t, "Answer generation is not configured", body["answerError"])

	meta := body["metadata"].(map[string]interface{})
	assert.Equal(t, "full_small_tree", meta["context_strategy"])
	assert.Equal(t, float64(3), meta["total_nodes"])
	assert.Equal(t, float64(3), meta["context_nodes"])
	assert.Equal(t, false, meta["used_semantic_search"])
}

func TestContainer_LegacyPathAndPostBody(t *testing.T) {
	srv := newServer(t)

	status, body := do(t, http.MethodPost, srv.URL+"/trees/"+publicTree+"/ai-search", "",
		`{"query":"what is step 1","messages":[{"role":"user","content":"hi"},{"role":"robot","content":"dropped"}]}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "what is step 1", body["query"])
}

func TestContainer_PrivateTreeAccess(t *testing.T) {
	srv := newServer(t)
	target := searchURL(srv.URL, "/api", privateTree, "list all steps")

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "anonymous", token: "", status: http.StatusUnauthorized},
		{name: "garbage token", token: "nope", status: http.StatusUnauthorized},
		{name: "stranger", token: tokenFor(t, strangerID), status: http.StatusForbidden},
		{name: "viewer", token: tokenFor(t, viewerID), status: http.StatusOK},
		{name: "owner", token: tokenFor(t, ownerID), status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, http.MethodGet, target, tt.token, "")
			assert.Equal(t, tt.status, status)
			if status != http.StatusOK {
				assert.Len(t, body, 1, "error bodies carry only the message")
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestContainer_RequestErrors(t *testing.T) {
	srv := newServer(t)

	status, body := do(t, http.MethodGet, srv.URL+"/api/trees/"+publicTree+"/ai-search", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Query is required", body["error"])

	status, _ = do(t, http.MethodGet, searchURL(srv.URL, "/api", "cccccccc-cccc-4ccc-8ccc-cccccccccccc", "x"), "", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, http.MethodGet, searchURL(srv.URL, "/api", "not-a-uuid", "x"), "", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, http.MethodPost, srv.URL+"/api/trees/"+publicTree+"/ai-search", "", `{"query":`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, http.MethodPut, srv.URL+"/api/nodes/node-seed/references", "", `{"referenced_tree_ids":[]}`)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestContainer_OperationalEndpoints(t *testing.T) {
	srv := newServer(t)

	status, body := do(t, http.MethodGet, srv.URL+"/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, _ = do(t, http.MethodGet, srv.URL+"/ready", "", "")
	assert.Equal(t, http.StatusOK, status)

	do(t, http.MethodGet, searchURL(srv.URL, "/api", publicTree, "list all steps"), "", "")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "labsos_http_requests_total")
	assert.Contains(t, string(data), `route="/api/trees/{treeID}/ai-search"`)
}

func TestProvideDataSourceFactory_RequiresSource(t *testing.T) {
	cfg := config.Defaults()
	_, err := ProvideDataSourceFactory(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}
