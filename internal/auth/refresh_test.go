package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
		hits.Add(1)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new","refresh_token":"r2","token_type":"Bearer","expires_in":21600,"athlete":{"id":4242}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenReturnsValidTokenWithoutRefresh(t *testing.T) {
	var hits atomic.Int32
	srv := tokenServer(t, &hits)

	cfg := NewOAuthConfig(Config{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL})
	ts := NewTokenSource(cfg, &oauth2.Token{AccessToken: "old", RefreshToken: "r1", Expiry: time.Now().Add(time.Hour)}, nil)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "old", tok.AccessToken)
	assert.False(t, ts.IsExpired())
	assert.EqualValues(t, 0, hits.Load())
}

func TestTokenRefreshesExpiredToken(t *testing.T) {
	var hits atomic.Int32
	srv := tokenServer(t, &hits)

	var persisted *oauth2.Token
	cfg := NewOAuthConfig(Config{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL})
	ts := NewTokenSource(cfg, &oauth2.Token{AccessToken: "old", RefreshToken: "r1", Expiry: time.Now().Add(-time.Minute)},
		func(tok *oauth2.Token) error {
			persisted = tok
			return nil
		})

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)
	require.NotNil(t, persisted)
	assert.Equal(t, "r2", persisted.RefreshToken)
	assert.Equal(t, int64(4242), ExtractAthleteID(persisted))
	assert.EqualValues(t, 1, hits.Load())
}

func TestForceRefreshIgnoresExpiry(t *testing.T) {
	var hits atomic.Int32
	srv := tokenServer(t, &hits)

	cfg := NewOAuthConfig(Config{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL})
	ts := NewTokenSource(cfg, &oauth2.Token{AccessToken: "revoked", RefreshToken: "r1", Expiry: time.Now().Add(time.Hour)}, nil)

	require.NoError(t, ts.ForceRefresh(context.Background()))
	assert.Equal(t, "new", ts.CurrentToken().AccessToken)
	assert.EqualValues(t, 1, hits.Load())
}

func TestForceRefreshWithoutRefreshToken(t *testing.T) {
	cfg := NewOAuthConfig(Config{ClientID: "id", ClientSecret: "secret"})
	ts := NewTokenSource(cfg, &oauth2.Token{AccessToken: "a"}, nil)

	assert.ErrorIs(t, ts.ForceRefresh(context.Background()), ErrNoRefreshToken)
}
