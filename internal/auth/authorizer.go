package auth

import (
	"context"
	"time"

	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store"
)

// Authorizer resolves bearer tokens to accounts and issues new tokens.
type Authorizer struct {
	store    store.Store
	tokenTTL time.Duration
}

func NewAuthorizer(s store.Store, tokenTTL time.Duration) *Authorizer {
	return &Authorizer{store: s, tokenTTL: tokenTTL}
}

// IssueToken creates a fresh token for the user and returns the plain value.
func (a *Authorizer) IssueToken(ctx context.Context, userID string) (string, error) {
	return a.store.Tokens().Create(ctx, userID, time.Now().Add(a.tokenTTL))
}

// Authorize validates a bearer token and returns the account it belongs to.
// Deactivated accounts fail with model.ErrForbidden even when the token is
// otherwise valid.
func (a *Authorizer) Authorize(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, model.ErrUnauthorized
	}
	u, err := a.store.Tokens().Validate(ctx, token)
	if err != nil {
		return nil, model.ErrUnauthorized
	}
	if !u.IsActive {
		return nil, model.ErrForbidden
	}
	return u, nil
}

// RevokeUserTokens invalidates every outstanding token for a user.
func (a *Authorizer) RevokeUserTokens(ctx context.Context, userID string) error {
	return a.store.Tokens().DeleteForUser(ctx, userID)
}
