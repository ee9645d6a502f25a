package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AthleteOutcome is one athlete's part of a batch run
type AthleteOutcome struct {
	AthleteID int64
	Synced    int
	Err       error
}

// BatchReport summarizes a batch run
type BatchReport struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Athletes []AthleteOutcome
	Failed   int
}

// RunBatch syncs and recomputes the power curve for every connected athlete.
// One athlete failing does not stop the others.
func (s *Service) RunBatch(ctx context.Context) (*BatchReport, error) {
	report := &BatchReport{
		RunID:   uuid.NewString(),
		Started: s.now(),
	}
	log := s.log.With().Str("run_id", report.RunID).Logger()

	if err := s.store.StartRun(report.RunID, report.Started); err != nil {
		return nil, fmt.Errorf("recording batch start: %w", err)
	}

	athletes, err := s.store.ListAthletes()
	if err != nil {
		s.finishRun(report, err)
		return nil, fmt.Errorf("listing athletes: %w", err)
	}
	log.Info().Int("athletes", len(athletes)).Msg("batch run started")

	var errs []error
	for _, id := range athletes {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		outcome := AthleteOutcome{AthleteID: id}
		if res, err := s.Sync(ctx, id); err != nil {
			outcome.Err = fmt.Errorf("sync: %w", err)
		} else {
			outcome.Synced = res.SessionsStored
			if _, err := s.RecomputeCurve(ctx, id); err != nil {
				outcome.Err = fmt.Errorf("power curve: %w", err)
			}
		}

		if outcome.Err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("athlete %d: %w", id, outcome.Err))
			log.Warn().Err(outcome.Err).Int64("athlete_id", id).Msg("batch athlete failed")
		}
		report.Athletes = append(report.Athletes, outcome)
	}

	runErr := errors.Join(errs...)
	s.finishRun(report, runErr)
	log.Info().
		Int("athletes", len(report.Athletes)).
		Int("failed", report.Failed).
		Dur("took", report.Finished.Sub(report.Started)).
		Msg("batch run finished")

	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

func (s *Service) finishRun(report *BatchReport, runErr error) {
	report.Finished = s.now()
	status := "ok"
	if runErr != nil {
		status = "partial"
	}
	s.metrics.BatchRuns.WithLabelValues(status).Inc()

	if err := s.store.FinishRun(report.RunID, report.Finished, len(report.Athletes), report.Failed, runErr); err != nil {
		s.log.Error().Err(err).Str("run_id", report.RunID).Msg("recording batch finish")
	}
}
