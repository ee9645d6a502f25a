package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"strava-power/internal/auth"
	"strava-power/internal/fetch"
	"strava-power/internal/store"
	"strava-power/internal/strava"
)

// TokenStore reads and updates stored athlete tokens
type TokenStore interface {
	GetAuth(athleteID int64) (*store.Auth, error)
	UpdateTokens(athleteID int64, accessToken, refreshToken string, expiresAt time.Time) error
}

// StravaUpstreams builds one Strava client per athlete from stored tokens
// and reuses it, so refreshed tokens are shared between operations.
func StravaUpstreams(tokens TokenStore, oauthCfg *oauth2.Config, baseURL string, log zerolog.Logger) UpstreamFactory {
	var mu sync.Mutex
	clients := make(map[int64]*strava.Client)

	return func(athleteID int64) (fetch.Upstream, error) {
		mu.Lock()
		defer mu.Unlock()

		if c, ok := clients[athleteID]; ok {
			return c, nil
		}

		stored, err := tokens.GetAuth(athleteID)
		if err != nil {
			return nil, fmt.Errorf("athlete %d: %w", athleteID, err)
		}
		token := &oauth2.Token{
			AccessToken:  stored.AccessToken,
			RefreshToken: stored.RefreshToken,
			Expiry:       stored.ExpiresAt,
			TokenType:    "Bearer",
		}

		ts := auth.NewTokenSource(oauthCfg, token, func(t *oauth2.Token) error {
			log.Debug().Int64("athlete_id", athleteID).Msg("persisting refreshed token")
			return tokens.UpdateTokens(athleteID, t.AccessToken, t.RefreshToken, t.Expiry)
		})

		c := strava.NewClient(ts, strava.WithBaseURL(baseURL))
		clients[athleteID] = c
		return c, nil
	}
}
