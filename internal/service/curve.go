package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"strava-power/internal/analysis"
	"strava-power/internal/fetch"
	"strava-power/internal/store"
)

// CurveResult is a power curve answer. Record is nil when no snapshot exists yet.
type CurveResult struct {
	Record *store.CurveRecord
	// Refreshing is set when a background recompute was started
	Refreshing bool
	// Stale is set when a recompute failed and an older snapshot was returned
	Stale   bool
	Message string
}

// Curve returns the curve, or an all-zero curve when there is no snapshot
func (r *CurveResult) Curve() analysis.PowerCurve {
	if r == nil || r.Record == nil {
		return analysis.NewPowerCurve(analysis.StandardDurations)
	}
	return r.Record.Curve
}

// PowerCurve returns the stored curve if it is younger than maxAge. Otherwise it
// recomputes: synchronously, or in the background when background is set, in
// which case whatever snapshot exists is returned straight away.
func (s *Service) PowerCurve(ctx context.Context, athleteID int64, maxAge time.Duration, background bool) (*CurveResult, error) {
	rec, err := s.store.LoadPowerCurve(athleteID)
	if err != nil && !errors.Is(err, store.ErrPowerCurveNotFound) {
		return nil, fmt.Errorf("loading power curve: %w", err)
	}

	if rec != nil && rec.Age(s.now()) <= maxAge {
		s.metrics.CurveRequests.WithLabelValues("fresh").Inc()
		return &CurveResult{Record: rec}, nil
	}

	if background {
		s.metrics.CurveRequests.WithLabelValues("background").Inc()
		s.RecomputeInBackground(athleteID)
		return &CurveResult{Record: rec, Refreshing: true, Message: "power curve is being recomputed"}, nil
	}

	fresh, err := s.RecomputeCurve(ctx, athleteID)
	if err != nil {
		if rec != nil {
			s.metrics.CurveRequests.WithLabelValues("stale").Inc()
			s.log.Warn().Err(err).Int64("athlete_id", athleteID).Msg("recompute failed, serving stale power curve")
			return &CurveResult{Record: rec, Stale: true, Message: fmt.Sprintf("recompute failed: %v", err)}, nil
		}
		s.metrics.CurveRequests.WithLabelValues("failed").Inc()
		return nil, err
	}

	s.metrics.CurveRequests.WithLabelValues("recomputed").Inc()
	return &CurveResult{Record: fresh}, nil
}

// RecomputeCurve fetches the athlete's recent power streams, rebuilds the
// curve and replaces the stored snapshot. Concurrent calls for the same
// athlete share one execution.
func (s *Service) RecomputeCurve(ctx context.Context, athleteID int64) (*store.CurveRecord, error) {
	key := strconv.FormatInt(athleteID, 10)

	// The shared run outlives any single caller's cancellation
	ch := s.curves.DoChan(key, func() (any, error) {
		return s.recompute(context.WithoutCancel(ctx), athleteID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*store.CurveRecord), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RecomputeInBackground starts a recompute without waiting for it
func (s *Service) RecomputeInBackground(athleteID int64) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.RecomputeCurve(context.Background(), athleteID); err != nil {
			s.log.Error().Err(err).Int64("athlete_id", athleteID).Msg("background power curve recompute failed")
		}
	}()
}

func (s *Service) recompute(ctx context.Context, athleteID int64) (*store.CurveRecord, error) {
	start := time.Now()
	log := s.log.With().Int64("athlete_id", athleteID).Logger()

	f, err := s.fetcher(athleteID)
	if err != nil {
		s.metrics.RecomputeDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, err
	}

	res, err := f.Fetch(ctx, athleteID, s.opts.SessionLimit, time.Time{})
	if err != nil {
		s.metrics.RecomputeDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("fetching streams: %w", err)
	}

	curve := analysis.ExtractParallel(toPowerStreams(res.Streams), analysis.StandardDurations, analysis.ExtractOptions{}, s.opts.Fetch.Concurrency)
	computedAt := s.now()
	if err := s.store.SavePowerCurve(athleteID, curve, computedAt); err != nil {
		s.metrics.RecomputeDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("saving power curve: %w", err)
	}

	s.metrics.RecomputeDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	log.Info().
		Int("sessions", len(res.Streams)).
		Int("dropped", res.Failed).
		Dur("took", time.Since(start)).
		Msg("power curve recomputed")

	return &store.CurveRecord{
		AthleteID:  athleteID,
		Version:    store.CurveSchemaVersion,
		Curve:      curve,
		ComputedAt: computedAt,
	}, nil
}

func toPowerStreams(in []fetch.SessionStreams) []analysis.PowerStream {
	out := make([]analysis.PowerStream, len(in))
	for i, s := range in {
		out[i] = analysis.PowerStream{
			SessionID: s.SessionID,
			StartDate: s.StartDate,
			Power:     s.Power,
			Time:      s.Time,
		}
	}
	return out
}
