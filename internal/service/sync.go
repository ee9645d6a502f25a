package service

import (
	"context"
	"fmt"

	"strava-power/internal/analysis"
	"strava-power/internal/store"
	"strava-power/internal/strava"
)

// SyncResult contains the results of a sync operation
type SyncResult struct {
	AthleteID       int64
	SessionsFetched int
	SessionsStored  int
	WithPower       int
	Errors          []error
}

// Sync pulls session summaries newer than the latest stored one (less a day
// of overlap) and stores them with their stress scores.
func (s *Service) Sync(ctx context.Context, athleteID int64) (*SyncResult, error) {
	log := s.log.With().Int64("athlete_id", athleteID).Logger()

	f, err := s.fetcher(athleteID)
	if err != nil {
		return nil, err
	}

	latest, err := s.store.LatestSessionStart(athleteID)
	if err != nil {
		return nil, fmt.Errorf("reading latest session: %w", err)
	}
	after := latest
	if !after.IsZero() {
		after = after.Add(-syncOverlap)
	}

	activities, err := f.ListSessions(ctx, after)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	result := &SyncResult{AthleteID: athleteID, SessionsFetched: len(activities)}
	for _, a := range activities {
		sess := s.convertActivity(athleteID, a)
		if err := s.store.UpsertSession(sess); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("storing session %d: %w", a.ID, err))
			continue
		}
		result.SessionsStored++
		if sess.HasPower {
			result.WithPower++
		}
	}
	s.metrics.SessionsSynced.Add(float64(result.SessionsStored))

	if err := s.store.SetLastSync(athleteID, s.now()); err != nil {
		return result, fmt.Errorf("recording sync time: %w", err)
	}

	log.Info().
		Int("fetched", result.SessionsFetched).
		Int("stored", result.SessionsStored).
		Int("with_power", result.WithPower).
		Msg("sync complete")
	return result, nil
}

// convertActivity maps an upstream summary to a stored session and scores it.
// Power sessions use TSS from weighted average watts; others fall back to HRSS.
func (s *Service) convertActivity(athleteID int64, a strava.Activity) *store.Session {
	sess := &store.Session{
		ID:             a.ID,
		AthleteID:      athleteID,
		Name:           a.Name,
		SportType:      a.SportType,
		StartDate:      a.StartDate,
		StartDateLocal: a.StartDateLocal,
		MovingTime:     a.MovingTime,
		HasPower:       a.HasPowerMeter(),
	}
	if sess.SportType == "" {
		sess.SportType = a.Type
	}
	if a.AverageWatts > 0 {
		sess.AverageWatts = floatPtr(a.AverageWatts)
	}
	if a.WeightedAverageWatts > 0 {
		sess.WeightedAverageWatts = floatPtr(a.WeightedAverageWatts)
	}
	if a.Kilojoules > 0 {
		sess.Kilojoules = floatPtr(a.Kilojoules)
	}
	if a.HasHeartrate && a.AverageHeartrate > 0 {
		sess.AverageHeartrate = floatPtr(a.AverageHeartrate)
	}

	switch {
	case sess.HasPower && a.WeightedAverageWatts > 0:
		sess.TSS = analysis.SessionTSS(a.MovingTime, a.WeightedAverageWatts, s.opts.Athlete.FTP)
	case sess.HasPower:
		sess.TSS = analysis.SessionTSS(a.MovingTime, a.AverageWatts, s.opts.Athlete.FTP)
	case sess.AverageHeartrate != nil:
		sess.TSS = analysis.HRSS(a.MovingTime, *sess.AverageHeartrate, s.zones)
	}
	return sess
}

func floatPtr(f float64) *float64 { return &f }
