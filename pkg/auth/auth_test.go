package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "labsos-backend/pkg/errors"
)

func TestJWTValidator(t *testing.T) {
	v, err := NewJWTValidator(JWTConfig{SecretKey: "super-secret", Audience: []string{"authenticated"}})
	require.NoError(t, err)

	token, err := v.IssueToken("user-1", "a@lab.org", time.Minute)
	require.NoError(t, err)

	claims, err := v.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@lab.org", claims.Email)

	_, err = v.ValidateToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	expired, err := v.IssueToken("user-1", "", -time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	other, err := NewJWTValidator(JWTConfig{SecretKey: "other"})
	require.NoError(t, err)
	forged, err := other.IssueToken("user-1", "", time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(forged)
	assert.Error(t, err)

	_, err = NewJWTValidator(JWTConfig{})
	assert.Error(t, err)
}

func TestJWTValidator_RejectsAnonKey(t *testing.T) {
	v, err := NewJWTValidator(JWTConfig{SecretKey: "super-secret"})
	require.NoError(t, err)

	anon, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "anon",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	_, err = v.ValidateToken(anon)
	assert.ErrorIs(t, err, ErrInvalidClaims)

	wrongAud, err := NewJWTValidator(JWTConfig{SecretKey: "super-secret", Audience: []string{"service"}})
	require.NoError(t, err)
	token, err := v.IssueToken("user-1", "", time.Minute)
	require.NoError(t, err)
	_, err = wrongAud.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestAuthError_ToAppError(t *testing.T) {
	cause := errors.New("bad sig")
	unauth := NewUnauthenticated("invalid token", cause)
	assert.Equal(t, http.StatusUnauthorized, unauth.ToAppError().HTTPStatus)
	assert.ErrorIs(t, unauth, cause)

	forbidden := NewForbidden("access denied")
	assert.True(t, apperrors.IsForbidden(forbidden.ToAppError()))

	wrapped := errors.Join(errors.New("ctx"), forbidden)
	got, ok := AsAuthError(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, got.StatusCode)
}

func TestUserContext(t *testing.T) {
	ctx := SetUserInContext(context.Background(), &UserContext{UserID: "u1"})
	user, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)

	_, err = GetUserFromContext(context.Background())
	assert.Error(t, err)
}

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "k")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "other")
	assert.True(t, ok, "keys are independent")

	now = now.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok, "window slid")

	now = now.Add(5 * time.Minute)
	_, _ = l.Allow(ctx, "fresh")
	assert.NotContains(t, l.calls, "other", "idle keys are evicted")
}

func TestPrefixedLimiter(t *testing.T) {
	ctx := context.Background()
	base := NewSlidingWindowLimiter(1, time.Minute)
	users, ips := NewUserRateLimiter(base), NewIPRateLimiter(base)

	ok, _ := users.Allow(ctx, "1.2.3.4")
	assert.True(t, ok)
	ok, _ = ips.Allow(ctx, "1.2.3.4")
	assert.True(t, ok, "user and ip keys do not collide")
	ok, _ = ips.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)
}

type mockDynamo struct {
	mock.Mock
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func TestDistributedRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows under limit", func(t *testing.T) {
		client := new(mockDynamo)
		client.On("UpdateItem", ctx, mock.Anything).Return(&dynamodb.UpdateItemOutput{
			Attributes: map[string]types.AttributeValue{
				"PK":    &types.AttributeValueMemberS{Value: "x"},
				"Count": &types.AttributeValueMemberN{Value: "3"},
			},
		}, nil)

		l := NewDistributedRateLimiter(client, "rl", 5, time.Minute, "ai-search")
		ok, err := l.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, ok)

		in := client.Calls[0].Arguments.Get(1).(*dynamodb.UpdateItemInput)
		pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
		assert.Contains(t, pk, "RATELIMIT#ai-search#user-1#")
		assert.Equal(t, "rl", *in.TableName)
	})

	t.Run("denies past limit on a racing write", func(t *testing.T) {
		client := new(mockDynamo)
		client.On("UpdateItem", ctx, mock.Anything).Return(&dynamodb.UpdateItemOutput{
			Attributes: map[string]types.AttributeValue{
				"Count": &types.AttributeValueMemberN{Value: "6"},
			},
		}, nil)

		ok, err := NewDistributedRateLimiter(client, "rl", 5, time.Minute, "p").Allow(ctx, "u")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("denies when condition fails", func(t *testing.T) {
		client := new(mockDynamo)
		client.On("UpdateItem", ctx, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		ok, err := NewDistributedRateLimiter(client, "rl", 5, time.Minute, "p").Allow(ctx, "u")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("fails open on store errors", func(t *testing.T) {
		client := new(mockDynamo)
		client.On("UpdateItem", ctx, mock.Anything).Return(nil, errors.New("timeout"))

		ok, err := NewDistributedRateLimiter(client, "rl", 5, time.Minute, "p").Allow(ctx, "u")
		assert.Error(t, err)
		assert.True(t, ok)
	})

	t.Run("nil client allows", func(t *testing.T) {
		ok, err := NewDistributedRateLimiter(nil, "rl", 5, time.Minute, "p").Allow(ctx, "u")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
