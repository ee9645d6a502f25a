// Package auth connects Strava athletes to strava-power. Each athlete runs the
// login flow once; their tokens are stored per athlete and refreshed on demand
// by a TokenSource shared by that athlete's API client.
package auth

import (
	"golang.org/x/oauth2"
)

const (
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"
)

// Scopes lets the app list every athlete's activities, private ones included,
// and read their power streams. Strava expects them comma-joined in one value.
var Scopes = []string{
	"read,activity:read_all",
}

// Config holds the application's client credentials, shared by all athletes
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// TokenURL overrides the Strava token endpoint, mostly for tests
	TokenURL string
}

// NewOAuthConfig builds the one oauth2.Config used for logins and for every
// athlete's token refreshes. Strava wants credentials in the form body.
func NewOAuthConfig(cfg Config) *oauth2.Config {
	tokenURL := TokenURL
	if cfg.TokenURL != "" {
		tokenURL = cfg.TokenURL
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: cfg.RedirectURL,
		Scopes:      Scopes,
	}
}

// AuthResult is one athlete's completed login
type AuthResult struct {
	Token     *oauth2.Token
	AthleteID int64
}

// ExtractAthleteID reads the athlete id Strava returns alongside the tokens.
// It keys the stored tokens, so a zero result means the login can't be saved.
func ExtractAthleteID(token *oauth2.Token) int64 {
	athlete, ok := token.Extra("athlete").(map[string]any)
	if !ok {
		return 0
	}
	id, _ := athlete["id"].(float64)
	return int64(id)
}
