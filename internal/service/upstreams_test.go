package service

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strava-power/internal/auth"
	"strava-power/internal/store"
)

func TestStravaUpstreamsCachesPerAthlete(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.SaveAuth(&store.Auth{AthleteID: 42, AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}))

	factory := StravaUpstreams(db, auth.NewOAuthConfig(auth.Config{ClientID: "id", ClientSecret: "secret"}), "http://127.0.0.1:1", zerolog.Nop())

	first, err := factory(42)
	require.NoError(t, err)
	second, err := factory(42)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = factory(7)
	assert.ErrorIs(t, err, store.ErrNoAuth)
}
