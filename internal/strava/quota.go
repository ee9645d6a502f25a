package strava

import (
	"net/http"
	"strconv"
	"strings"
)

// Strava rate limits:
// - 100 requests per 15 minutes (short window)
// - 1000 requests per day (daily window)

// Quota is the usage Strava reports on every response
type Quota struct {
	ShortUsed  int
	ShortLimit int
	DailyUsed  int
	DailyLimit int
}

// Known reports whether the response carried rate limit headers
func (q Quota) Known() bool {
	return q.ShortLimit > 0 || q.DailyLimit > 0
}

// ParseQuota reads X-RateLimit-Usage and X-RateLimit-Limit.
// Strava returns: X-RateLimit-Limit: "100,1000" and X-RateLimit-Usage: "34,512"
func ParseQuota(h http.Header) Quota {
	var q Quota
	q.ShortUsed, q.DailyUsed = parsePair(h.Get("X-RateLimit-Usage"))
	q.ShortLimit, q.DailyLimit = parsePair(h.Get("X-RateLimit-Limit"))
	return q
}

func parsePair(v string) (short, daily int) {
	if v == "" {
		return 0, 0
	}
	parts := strings.Split(v, ",")
	if len(parts) < 2 {
		return 0, 0
	}
	short, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	daily, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	return short, daily
}
