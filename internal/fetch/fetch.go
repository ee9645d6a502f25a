// Package fetch pulls power sessions and their streams from the upstream.
package fetch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"strava-power/internal/scheduler"
	"strava-power/internal/strava"
)

// Upstream is the subset of the Strava API the fetcher needs
type Upstream interface {
	ListSessions(ctx context.Context, after time.Time, perPage, page int) ([]strava.Activity, strava.Quota, error)
	GetSessionStreams(ctx context.Context, id int64, keys []string) (strava.Streams, strava.Quota, error)
}

// SessionStreams is the power and time channels of one session
type SessionStreams struct {
	SessionID int64
	StartDate time.Time
	Power     []float64
	Time      []float64
}

// Config tunes paging and stream batches
type Config struct {
	Concurrency int
	PageSize    int
	MaxPages    int
	BatchDelay  time.Duration
}

// DefaultConfig returns the stock paging and batch settings
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		PageSize:    200,
		MaxPages:    10,
	}
}

// Result is what one Fetch produced
type Result struct {
	// Sessions are the power sessions considered, newest first
	Sessions []strava.Activity
	// Streams holds one entry per session whose streams were fetched, newest first
	Streams []SessionStreams
	// Failed counts sessions dropped because their stream fetch failed
	Failed int
}

// Fetcher lists sessions and fetches streams through a scheduler
type Fetcher struct {
	upstream Upstream
	sched    *scheduler.Scheduler
	cfg      Config
	log      zerolog.Logger
}

// New creates a Fetcher. Zero config fields take defaults.
func New(upstream Upstream, sched *scheduler.Scheduler, cfg Config, log zerolog.Logger) *Fetcher {
	d := DefaultConfig()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = d.Concurrency
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = d.PageSize
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = d.MaxPages
	}
	return &Fetcher{
		upstream: upstream,
		sched:    sched,
		cfg:      cfg,
		log:      log.With().Str("component", "fetch").Logger(),
	}
}

// Fetch lists the athlete's sessions after 'after', keeps the newest 'limit'
// carrying power and fetches their streams. A failed stream fetch drops only
// that session; a failed listing page fails the whole call.
func (f *Fetcher) Fetch(ctx context.Context, athleteID int64, limit int, after time.Time) (*Result, error) {
	log := f.log.With().Int64("athlete_id", athleteID).Logger()

	sessions, err := f.ListPowerSessions(ctx, after, limit)
	if err != nil {
		return nil, err
	}
	log.Info().Int("sessions", len(sessions)).Msg("listed power sessions")

	streams, failed, err := f.fetchStreams(ctx, log, sessions)
	if err != nil {
		return nil, err
	}
	if failed > 0 {
		log.Warn().Int("failed", failed).Int("fetched", len(streams)).Msg("some sessions were dropped")
	}

	return &Result{Sessions: sessions, Streams: streams, Failed: failed}, nil
}

// ListSessions pages through every session after 'after' until a short page
// or the page ceiling.
func (f *Fetcher) ListSessions(ctx context.Context, after time.Time) ([]strava.Activity, error) {
	var all []strava.Activity
	for page := 1; page <= f.cfg.MaxPages; page++ {
		batch, err := scheduler.Enqueue(ctx, f.sched, func(ctx context.Context) ([]strava.Activity, scheduler.Usage, error) {
			acts, quota, err := f.upstream.ListSessions(ctx, after, f.cfg.PageSize, page)
			return acts, usageOf(quota), err
		})
		if err != nil {
			return nil, fmt.Errorf("listing sessions page %d: %w", page, err)
		}

		all = append(all, batch...)
		if len(batch) < f.cfg.PageSize {
			break // Last page
		}
	}
	return all, nil
}

// ListPowerSessions lists sessions and keeps the newest 'limit' carrying
// power. limit <= 0 keeps all.
func (f *Fetcher) ListPowerSessions(ctx context.Context, after time.Time, limit int) ([]strava.Activity, error) {
	all, err := f.ListSessions(ctx, after)
	if err != nil {
		return nil, err
	}

	power := make([]strava.Activity, 0, len(all))
	for _, a := range all {
		if a.HasPowerMeter() {
			power = append(power, a)
		}
	}
	sort.SliceStable(power, func(i, j int) bool {
		return power[i].StartDate.After(power[j].StartDate)
	})
	if limit > 0 && len(power) > limit {
		power = power[:limit]
	}
	return power, nil
}

func (f *Fetcher) fetchStreams(ctx context.Context, log zerolog.Logger, sessions []strava.Activity) ([]SessionStreams, int, error) {
	out := make([]SessionStreams, 0, len(sessions))
	failed := 0

	for start := 0; start < len(sessions); start += f.cfg.Concurrency {
		if start > 0 && f.cfg.BatchDelay > 0 {
			select {
			case <-time.After(f.cfg.BatchDelay):
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		end := min(start+f.cfg.Concurrency, len(sessions))
		batch := sessions[start:end]
		results := make([]*SessionStreams, len(batch))

		var g errgroup.Group
		for i, a := range batch {
			i, a := i, a
			g.Go(func() error {
				ss, err := f.fetchOne(ctx, a)
				if err != nil {
					log.Warn().Err(err).Int64("session_id", a.ID).Msg("dropping session, stream fetch failed")
					return nil
				}
				results[i] = ss
				return nil
			})
		}
		g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		for _, r := range results {
			if r == nil {
				failed++
				continue
			}
			out = append(out, *r)
		}
		log.Debug().Int("done", end).Int("total", len(sessions)).Msg("stream batch complete")
	}

	return out, failed, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, a strava.Activity) (*SessionStreams, error) {
	streams, err := scheduler.Enqueue(ctx, f.sched, func(ctx context.Context) (strava.Streams, scheduler.Usage, error) {
		s, quota, err := f.upstream.GetSessionStreams(ctx, a.ID, strava.PowerStreamKeys)
		return s, usageOf(quota), err
	})
	if err != nil {
		return nil, err
	}
	if !streams.HasPower() {
		return nil, fmt.Errorf("session %d has no watts stream", a.ID)
	}

	return &SessionStreams{
		SessionID: a.ID,
		StartDate: a.StartDate,
		Power:     streams[strava.StreamWatts],
		Time:      streams[strava.StreamTime],
	}, nil
}

func usageOf(q strava.Quota) scheduler.Usage {
	return scheduler.Usage{
		ShortUsed:  q.ShortUsed,
		ShortLimit: q.ShortLimit,
		DailyUsed:  q.DailyUsed,
		DailyLimit: q.DailyLimit,
	}
}
