package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// expiryBuffer refreshes slightly early so in-flight requests don't race the deadline
const expiryBuffer = 60 * time.Second

// ErrNoRefreshToken is returned when a refresh is needed but no refresh token is held
var ErrNoRefreshToken = errors.New("auth: no refresh token")

// TokenSource hands out Strava access tokens, refreshing them as needed
// and calling onRefresh so the new token can be persisted.
// It also implements strava.Refresher for 401 recovery.
type TokenSource struct {
	config    *oauth2.Config
	token     *oauth2.Token
	onRefresh func(*oauth2.Token) error
	mu        sync.Mutex
}

// NewTokenSource creates a new TokenSource that will refresh tokens as needed
// and call onRefresh to persist new tokens
func NewTokenSource(cfg *oauth2.Config, token *oauth2.Token, onRefresh func(*oauth2.Token) error) *TokenSource {
	return &TokenSource{
		config:    cfg,
		token:     token,
		onRefresh: onRefresh,
	}
}

// Token returns a valid token, refreshing if necessary
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if time.Until(ts.token.Expiry) > expiryBuffer {
		return ts.token, nil
	}
	return ts.refreshLocked(context.Background())
}

// ForceRefresh discards the current access token even if it has not expired.
// Used after the API rejects a token with 401.
func (ts *TokenSource) ForceRefresh(ctx context.Context) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	_, err := ts.refreshLocked(ctx)
	return err
}

func (ts *TokenSource) refreshLocked(ctx context.Context) (*oauth2.Token, error) {
	if ts.token.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	// Hand oauth2 an expired copy so it always goes to the token endpoint
	stale := &oauth2.Token{
		RefreshToken: ts.token.RefreshToken,
		Expiry:       time.Unix(1, 0),
	}
	newToken, err := ts.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	if ts.onRefresh != nil {
		if err := ts.onRefresh(newToken); err != nil {
			return nil, fmt.Errorf("persisting refreshed token: %w", err)
		}
	}

	ts.token = newToken
	return newToken, nil
}

// IsExpired checks if the current token is expired or will expire within the buffer
func (ts *TokenSource) IsExpired() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return time.Until(ts.token.Expiry) <= expiryBuffer
}

// CurrentToken returns the current token without refreshing
func (ts *TokenSource) CurrentToken() *oauth2.Token {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.token
}
