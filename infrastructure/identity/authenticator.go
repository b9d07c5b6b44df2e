// Package identity turns bearer tokens into principals with a data source
// scoped to the caller.
package identity

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"labsos-backend/application/ports"
	"labsos-backend/pkg/auth"
)

// UserLookup resolves a token with a remote auth server.
type UserLookup interface {
	LookupUser(ctx context.Context, accessToken string) (*auth.UserContext, error)
}

// Authenticator verifies tokens locally when a JWT secret is configured and
// asks the auth server otherwise.
type Authenticator struct {
	validator *auth.JWTValidator
	lookup    UserLookup
	factory   ports.DataSourceFactory
	logger    *zap.Logger
}

var _ ports.Authenticator = (*Authenticator)(nil)

// NewAuthenticator creates an authenticator. Either validator or lookup
// may be nil, not both.
func NewAuthenticator(validator *auth.JWTValidator, lookup UserLookup, factory ports.DataSourceFactory, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		validator: validator,
		lookup:    lookup,
		factory:   factory,
		logger:    logger,
	}
}

// Authenticate implements ports.Authenticator
func (a *Authenticator) Authenticate(ctx context.Context, bearerToken string) (*ports.Principal, error) {
	token := ExtractToken(bearerToken)
	if token == "" {
		return nil, auth.NewUnauthenticated("Authentication required", auth.ErrMissingToken)
	}

	user, err := a.verify(ctx, token)
	if err != nil {
		a.logger.Debug("Token rejected", zap.Error(err))
		return nil, auth.NewUnauthenticated(rejectionMessage(err), err)
	}

	ds, err := a.factory.ForUser(token)
	if err != nil {
		return nil, auth.NewUnauthenticated("Authentication required", err)
	}

	return &ports.Principal{User: user, AccessToken: token, DataSource: ds}, nil
}

func (a *Authenticator) verify(ctx context.Context, token string) (*auth.UserContext, error) {
	if a.validator != nil {
		claims, err := a.validator.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		return &auth.UserContext{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
	}
	if a.lookup != nil {
		return a.lookup.LookupUser(ctx, token)
	}
	return nil, errors.New("no token verifier configured")
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "Invalid token signature"
	default:
		return "Invalid token"
	}
}

// ExtractToken strips an optional Bearer scheme from an Authorization value.
func ExtractToken(header string) string {
	header = strings.TrimSpace(header)
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return header
}
