package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad"), http.StatusBadRequest},
		{NewNotFoundError("Tree"), http.StatusNotFound},
		{NewUnauthorizedError(""), http.StatusUnauthorized},
		{NewForbiddenError(""), http.StatusForbidden},
		{NewRateLimitError(20, "1m0s"), http.StatusTooManyRequests},
		{NewDatabaseError("list nodes", fmt.Errorf("boom")), http.StatusInternalServerError},
		{fmt.Errorf("query handler failed: %w", NewNotFoundError("Tree")), http.StatusNotFound},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.err), tt.err.Error())
	}
}

func TestStackTraceOnlyForServerErrors(t *testing.T) {
	assert.Empty(t, NewValidationError("bad").StackTrace)
	assert.Contains(t, NewInternalError("x").StackTrace, "TestStackTraceOnlyForServerErrors")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_Handle(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	req := httptest.NewRequest(http.MethodGet, "/trees/x/ai-search", nil)

	rec := httptest.NewRecorder()
	h.Handle(rec, req, NewNotFoundError("Tree"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]interface{}{"error": "Tree not found"}, decodeError(t, rec))

	rec = httptest.NewRecorder()
	h.Handle(rec, req, NewDatabaseError("count nodes", fmt.Errorf("connection refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]interface{}{"error": "Internal server error"}, decodeError(t, rec))

	rec = httptest.NewRecorder()
	h.Handle(rec, req, fmt.Errorf("raw"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "raw")
}

func TestErrorHandler_DebugAddsCause(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), true)
	rec := httptest.NewRecorder()

	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), NewValidationError("Invalid request body").WithCause(fmt.Errorf("unexpected EOF")))

	assert.Equal(t, "Invalid request body: unexpected EOF", decodeError(t, rec)["error"])
}

func TestErrorHandler_Middleware(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	handler := h.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map")
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeError(t, rec)["error"])
}
