package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound means the queried row does not exist (unknown token or
// hashtag).
var ErrNotFound = errors.New("not found")

// TokenInfo describes the owner of a valid access token.
type TokenInfo struct {
	UserID    int64
	AccountID int64
	Scopes    []string
}

// HasReadScope reports whether the token may read statuses.
func (t *TokenInfo) HasReadScope() bool {
	for _, s := range t.Scopes {
		if s == "read" || s == "read:statuses" {
			return true
		}
	}
	return false
}

// UserForToken resolves an OAuth access token to its owning user and
// account. Revoked tokens resolve to ErrNotFound.
func (db *DB) UserForToken(ctx context.Context, token string) (*TokenInfo, error) {
	const q = `
		SELECT oauth_access_tokens.resource_owner_id, users.account_id, oauth_access_tokens.scopes
		FROM oauth_access_tokens
		INNER JOIN users ON oauth_access_tokens.resource_owner_id = users.id
		WHERE oauth_access_tokens.token = $1
		  AND oauth_access_tokens.revoked_at IS NULL
		LIMIT 1`

	var info TokenInfo
	var scopes string
	err := db.pool.QueryRow(ctx, q, token).Scan(&info.UserID, &info.AccountID, &scopes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query access token: %w", err)
	}
	info.Scopes = strings.Fields(scopes)
	return &info, nil
}

// TagID resolves a hashtag name to its id.
func (db *DB) TagID(ctx context.Context, name string) (int64, error) {
	const q = `SELECT id FROM tags WHERE name = $1 LIMIT 1`

	var id int64
	err := db.pool.QueryRow(ctx, q, strings.ToLower(name)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query tag id: %w", err)
	}
	return id, nil
}

// TagName resolves a hashtag id back to its name.
func (db *DB) TagName(ctx context.Context, id int64) (string, error) {
	const q = `SELECT name FROM tags WHERE id = $1 LIMIT 1`

	var name string
	err := db.pool.QueryRow(ctx, q, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query tag name: %w", err)
	}
	return name, nil
}
