package supabase

import (
	"context"
	"errors"
	"fmt"

	supa "github.com/supabase-community/supabase-go"

	"labsos-backend/pkg/auth"
)

// UserLookup resolves access tokens with the Supabase auth server. It is
// the fallback when no JWT secret is configured for local verification.
type UserLookup struct {
	client *supa.Client
}

// NewUserLookup creates a lookup against the project's auth endpoint
func NewUserLookup(url, anonKey string) (*UserLookup, error) {
	client, err := supa.NewClient(url, anonKey, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &UserLookup{client: client}, nil
}

// LookupUser returns the user the token belongs to
func (l *UserLookup) LookupUser(ctx context.Context, accessToken string) (*auth.UserContext, error) {
	resp, err := l.client.Auth.WithToken(accessToken).GetUser()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	if resp == nil {
		return nil, errors.New("auth server returned no user")
	}
	return &auth.UserContext{
		UserID: resp.ID.String(),
		Email:  resp.Email,
		Role:   "authenticated",
	}, nil
}
