// Package auth authenticates streaming clients by their OAuth access
// token against the Mastodon database.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/baajur/flodgatt/internal/database"
)

// Errors
var (
	ErrMissingToken = errors.New("no access token provided")
	ErrInvalidToken = errors.New("access token is invalid or revoked")
	ErrMissingScope = errors.New("access token lacks the read scope")
)

// TokenStore resolves access tokens; *database.DB is the production
// implementation.
type TokenStore interface {
	UserForToken(ctx context.Context, token string) (*database.TokenInfo, error)
}

// Authenticator validates access tokens for non-public streams.
type Authenticator struct {
	store  TokenStore
	logger *slog.Logger
}

// New creates an Authenticator backed by the given token store.
func New(store TokenStore, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{store: store, logger: logger}
}

// Authenticate resolves the token to the account it belongs to.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (accountID int64, err error) {
	if token == "" {
		return 0, ErrMissingToken
	}

	info, err := a.store.UserForToken(ctx, token)
	if errors.Is(err, database.ErrNotFound) {
		a.logger.Debug("rejected unknown or revoked access token")
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, fmt.Errorf("look up access token: %w", err)
	}
	if !info.HasReadScope() {
		return 0, ErrMissingScope
	}

	return info.AccountID, nil
}
