// Package service ties the fetcher, analysis and store together into the
// operations the CLI and HTTP API expose.
package service

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"strava-power/internal/analysis"
	"strava-power/internal/config"
	"strava-power/internal/fetch"
	"strava-power/internal/scheduler"
	"strava-power/internal/store"
)

// ErrNoUpstream is returned when an athlete has no usable upstream client
var ErrNoUpstream = errors.New("no upstream client for athlete")

// CurveStore persists power curve snapshots
type CurveStore interface {
	LoadPowerCurve(athleteID int64) (*store.CurveRecord, error)
	SavePowerCurve(athleteID int64, curve analysis.PowerCurve, computedAt time.Time) error
}

// Store is everything the service reads and writes
type Store interface {
	CurveStore
	UpsertSession(s *store.Session) error
	ListSessions(athleteID int64, since time.Time) ([]store.Session, error)
	LatestSessionStart(athleteID int64) (time.Time, error)
	LastSync(athleteID int64) (time.Time, error)
	SetLastSync(athleteID int64, at time.Time) error
	ListAthletes() ([]int64, error)
	StartRun(id string, startedAt time.Time) error
	FinishRun(id string, finishedAt time.Time, athletes, failed int, runErr error) error
}

// UpstreamFactory returns the upstream client for an athlete
type UpstreamFactory func(athleteID int64) (fetch.Upstream, error)

// Options configures a Service
type Options struct {
	Athlete      config.AthleteConfig
	Fetch        fetch.Config
	SessionLimit int
	Metrics      *Metrics
}

// Service runs sync, curve, load, CP, forecast and batch operations
type Service struct {
	store     Store
	upstreams UpstreamFactory
	sched     *scheduler.Scheduler
	opts      Options
	zones     analysis.HRZones
	log       zerolog.Logger
	metrics   *Metrics
	now       func() time.Time

	// curves collapses concurrent recomputes for the same athlete
	curves     singleflight.Group
	background sync.WaitGroup
}

// New creates a Service. All upstream calls go through sched.
func New(st Store, upstreams UpstreamFactory, sched *scheduler.Scheduler, opts Options, log zerolog.Logger) *Service {
	if opts.SessionLimit < 1 {
		opts.SessionLimit = 100
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Service{
		store:     st,
		upstreams: upstreams,
		sched:     sched,
		opts:      opts,
		zones:     analysis.NewHRZones(opts.Athlete.RestingHR, opts.Athlete.MaxHR, opts.Athlete.ThresholdHR),
		log:       log.With().Str("component", "service").Logger(),
		metrics:   opts.Metrics,
		now:       time.Now,
	}
}

// Wait blocks until background recomputes have finished
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) fetcher(athleteID int64) (*fetch.Fetcher, error) {
	if s.upstreams == nil {
		return nil, ErrNoUpstream
	}
	up, err := s.upstreams(athleteID)
	if err != nil {
		return nil, err
	}
	return fetch.New(up, s.sched, s.opts.Fetch, s.log), nil
}
