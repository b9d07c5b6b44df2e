package identity

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"labsos-backend/infrastructure/persistence/memory"
	"labsos-backend/pkg/auth"
)

type stubLookup struct {
	user *auth.UserContext
	err  error
}

func (s stubLookup) LookupUser(ctx context.Context, token string) (*auth.UserContext, error) {
	return s.user, s.err
}

func newValidator(t *testing.T) *auth.JWTValidator {
	v, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: "test-secret"})
	require.NoError(t, err)
	return v
}

func TestAuthenticator_ValidJWT(t *testing.T) {
	v := newValidator(t)
	store := memory.NewStore()
	a := NewAuthenticator(v, nil, memory.Factory{Store: store}, zap.NewNop())

	token, err := v.IssueToken("user-1", "u@example.org", time.Hour)
	require.NoError(t, err)

	p, err := a.Authenticate(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.User.UserID)
	assert.Equal(t, "u@example.org", p.User.Email)
	assert.Equal(t, token, p.AccessToken)
	assert.Same(t, store, p.DataSource)
}

func TestAuthenticator_Rejections(t *testing.T) {
	v := newValidator(t)
	a := NewAuthenticator(v, nil, memory.Factory{Store: memory.NewStore()}, zap.NewNop())

	expired, err := v.IssueToken("user-1", "", -time.Minute)
	require.NoError(t, err)

	other, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: "other-secret"})
	require.NoError(t, err)
	forged, err := other.IssueToken("user-1", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{name: "missing", header: "", message: "Authentication required"},
		{name: "bearer only", header: "Bearer ", message: "Authentication required"},
		{name: "garbage", header: "Bearer not-a-jwt", message: "Invalid token"},
		{name: "expired", header: "Bearer " + expired, message: "Token has expired"},
		{name: "wrong secret", header: forged, message: "Invalid token signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(context.Background(), tt.header)
			authErr, ok := auth.AsAuthError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
			assert.Equal(t, tt.message, authErr.Message)
		})
	}
}

func TestAuthenticator_FallsBackToLookup(t *testing.T) {
	user := &auth.UserContext{UserID: "remote-user"}
	a := NewAuthenticator(nil, stubLookup{user: user}, memory.Factory{Store: memory.NewStore()}, zap.NewNop())

	p, err := a.Authenticate(context.Background(), "Bearer opaque")
	require.NoError(t, err)
	assert.Equal(t, "remote-user", p.User.UserID)

	a = NewAuthenticator(nil, stubLookup{err: errors.New("401 from auth server")}, memory.Factory{Store: memory.NewStore()}, zap.NewNop())
	_, err = a.Authenticate(context.Background(), "Bearer opaque")
	_, ok := auth.AsAuthError(err)
	assert.True(t, ok)
}

func TestAuthenticator_NoVerifier(t *testing.T) {
	a := NewAuthenticator(nil, nil, memory.Factory{Store: memory.NewStore()}, zap.NewNop())

	_, err := a.Authenticate(context.Background(), "Bearer x")
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	assert.Equal(t, "abc", ExtractToken("Bearer abc"))
	assert.Equal(t, "abc", ExtractToken("bearer  abc "))
	assert.Equal(t, "abc", ExtractToken("abc"))
	assert.Equal(t, "", ExtractToken("  "))
	assert.Equal(t, "", ExtractToken("Bearer "))
	assert.Equal(t, "", ExtractToken("BEARER"))
}
