package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Duration is a power curve bucket length in seconds
type Duration int

// Standard power curve buckets
const (
	Dur5s  Duration = 5
	Dur15s Duration = 15
	Dur30s Duration = 30
	Dur1m  Duration = 60
	Dur2m  Duration = 120
	Dur3m  Duration = 180
	Dur5m  Duration = 300
	Dur10m Duration = 600
	Dur15m Duration = 900
	Dur20m Duration = 1200
	Dur30m Duration = 1800
	Dur45m Duration = 2700
	Dur1h  Duration = 3600
)

// StandardDurations is the fixed ordered bucket set
var StandardDurations = []Duration{
	Dur5s, Dur15s, Dur30s,
	Dur1m, Dur2m, Dur3m, Dur5m, Dur10m, Dur15m, Dur20m, Dur30m, Dur45m,
	Dur1h,
}

// Seconds returns the bucket length in seconds
func (d Duration) Seconds() int { return int(d) }

// String formats the bucket as 5s, 2m, 1h
func (d Duration) String() string {
	switch {
	case d >= 3600 && d%3600 == 0:
		return fmt.Sprintf("%dh", d/3600)
	case d >= 60 && d%60 == 0:
		return fmt.Sprintf("%dm", d/60)
	default:
		return fmt.Sprintf("%ds", int(d))
	}
}

// PowerCurve maps each bucket to the best average watts held for that long
type PowerCurve map[Duration]float64

// NewPowerCurve returns a curve with every bucket at zero
func NewPowerCurve(buckets []Duration) PowerCurve {
	c := make(PowerCurve, len(buckets))
	for _, d := range buckets {
		c[d] = 0
	}
	return c
}

// Durations returns the curve's buckets shortest first
func (c PowerCurve) Durations() []Duration {
	ds := make([]Duration, 0, len(c))
	for d := range c {
		ds = append(ds, d)
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })
	return ds
}

// IsEmpty reports whether no bucket has a positive value
func (c PowerCurve) IsEmpty() bool {
	for _, w := range c {
		if w > 0 {
			return false
		}
	}
	return true
}

// PowerStream is one session's power samples with their time offsets
type PowerStream struct {
	SessionID int64
	StartDate time.Time
	Power     []float64 // watts
	Time      []float64 // seconds from start, may be empty
}

// ExtractOptions filters which sessions contribute to a curve
type ExtractOptions struct {
	// Since drops sessions that started before it when non-zero
	Since time.Time
}

func (o ExtractOptions) include(s PowerStream) bool {
	if len(s.Power) == 0 {
		return false
	}
	if !o.Since.IsZero() && s.StartDate.Before(o.Since) {
		return false
	}
	return true
}

// BucketBest is one session's result for a bucket.
// OK is false when the session is shorter than the bucket.
type BucketBest struct {
	Duration Duration
	Watts    float64
	OK       bool
}

// SampleInterval derives the seconds between samples from the time channel,
// falling back to 1s when it is missing or degenerate.
func SampleInterval(times []float64) float64 {
	n := len(times)
	if n < 2 {
		return 1
	}
	dt := (times[n-1] - times[0]) / float64(n-1)
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return 1
	}
	return dt
}

// SessionBests finds the highest average power over each bucket length
// within one session using prefix sums and a sliding window.
func SessionBests(s PowerStream, buckets []Duration) []BucketBest {
	out := make([]BucketBest, len(buckets))
	n := len(s.Power)

	prefix := make([]float64, n+1)
	for i, p := range s.Power {
		prefix[i+1] = prefix[i] + p
	}
	dt := SampleInterval(s.Time)

	for bi, d := range buckets {
		out[bi] = BucketBest{Duration: d}

		w := int(math.Ceil(float64(d) / dt))
		if w < 1 {
			w = 1
		}
		if n == 0 || w > n {
			continue
		}

		best := math.Inf(-1)
		for i := 0; i+w <= n; i++ {
			if avg := (prefix[i+w] - prefix[i]) / float64(w); avg > best {
				best = avg
			}
		}
		out[bi].Watts = best
		out[bi].OK = true
	}
	return out
}

// Merge combines two curves taking the max per bucket
func Merge(a, b PowerCurve) PowerCurve {
	out := make(PowerCurve, len(a))
	for d, w := range a {
		out[d] = w
	}
	for d, w := range b {
		if cur, ok := out[d]; !ok || w > cur {
			out[d] = w
		}
	}
	return out
}

func mergeBests(c PowerCurve, bests []BucketBest) {
	for _, b := range bests {
		if b.OK && b.Watts > c[b.Duration] {
			c[b.Duration] = b.Watts
		}
	}
}

// Extract builds the all-time curve across sessions. Buckets no session
// reached stay at zero.
func Extract(sessions []PowerStream, buckets []Duration, opts ExtractOptions) PowerCurve {
	curve := NewPowerCurve(buckets)
	for _, s := range sessions {
		if !opts.include(s) {
			continue
		}
		mergeBests(curve, SessionBests(s, buckets))
	}
	return curve
}

// ExtractParallel is Extract with per-session work spread over at most
// workers goroutines. The result equals Extract for the same input.
func ExtractParallel(sessions []PowerStream, buckets []Duration, opts ExtractOptions, workers int) PowerCurve {
	if workers < 1 {
		workers = 1
	}

	results := make([][]BucketBest, len(sessions))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, s := range sessions {
		if !opts.include(s) {
			continue
		}
		i, s := i, s
		g.Go(func() error {
			results[i] = SessionBests(s, buckets)
			return nil
		})
	}
	g.Wait()

	curve := NewPowerCurve(buckets)
	for _, r := range results {
		mergeBests(curve, r)
	}
	return curve
}
