package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const BaseURL = "https://www.strava.com/api/v3"

// Refresher is implemented by token sources that can be told the current token was rejected
type Refresher interface {
	ForceRefresh(ctx context.Context) error
}

// Client is a Strava API client.
// It does no pacing of its own; callers route requests through a scheduler.
type Client struct {
	baseURL    string
	httpClient *http.Client
	refresher  Refresher
	now        func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at a different API root
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying transport client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new Strava API client.
// If tokenSource also implements Refresher, a 401 triggers one refresh and retry.
func NewClient(tokenSource oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: BaseURL,
		// Plain Transport, not oauth2.NewClient: ReuseTokenSource would keep serving a revoked token
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: tokenSource, Base: http.DefaultTransport},
			Timeout:   30 * time.Second,
		},
		now: time.Now,
	}
	if r, ok := tokenSource.(Refresher); ok {
		c.refresher = r
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListSessions fetches one page of activities started after 'after'
func (c *Client) ListSessions(ctx context.Context, after time.Time, perPage, page int) ([]Activity, Quota, error) {
	params := url.Values{}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	var activities []Activity
	quota, err := c.getJSON(ctx, "/athlete/activities", params, &activities)
	if err != nil {
		return nil, quota, err
	}
	return activities, quota, nil
}

// GetSessionStreams fetches the requested stream channels for an activity, keyed by type
func (c *Client) GetSessionStreams(ctx context.Context, activityID int64, keys []string) (Streams, Quota, error) {
	if len(keys) == 0 {
		keys = PowerStreamKeys
	}
	params := url.Values{}
	params.Set("keys", strings.Join(keys, ","))
	params.Set("key_by_type", "true")

	var raw map[string]StreamData
	path := fmt.Sprintf("/activities/%d/streams", activityID)
	quota, err := c.getJSON(ctx, path, params, &raw)
	if err != nil {
		return nil, quota, err
	}

	streams := make(Streams, len(raw))
	for key, s := range raw {
		streams[key] = s.Data
	}
	return streams, quota, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) (Quota, error) {
	resp, quota, err := c.get(ctx, path, params)
	if errors.Is(err, ErrUnauthorized) && c.refresher != nil {
		if rerr := c.refresher.ForceRefresh(ctx); rerr != nil {
			return quota, fmt.Errorf("refreshing token: %w", rerr)
		}
		resp, quota, err = c.get(ctx, path, params)
	}
	if err != nil {
		return quota, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return quota, fmt.Errorf("decoding %s: %w", path, err)
	}
	return quota, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, Quota, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, Quota{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Quota{}, err
	}

	quota := ParseQuota(resp.Header)

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, quota, nil
	case http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, quota, &RateLimitError{
			Wait:    c.retryAfter(resp.Header),
			Message: "rate limit exceeded",
		}
	case http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, quota, ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, quota, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// retryAfter honours Retry-After when present; otherwise Strava's short
// window resets on the next quarter hour.
func (c *Client) retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	now := c.now()
	return now.Truncate(15 * time.Minute).Add(15 * time.Minute).Sub(now)
}
