package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"strava-power/internal/analysis"
	"strava-power/internal/service"
)

// writeJSON writes JSON response with proper error handling
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("encoding response")
	}
}

// writeError writes standardized error response
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Code:      code,
		Message:   message,
		RequestID: requestID(r.Context()),
		Timestamp: s.now().UTC(),
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.writeError(w, r, http.StatusNotFound, "endpoint_not_found", "The requested endpoint does not exist")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Timestamp: s.now().UTC()})
}

func athleteID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func maxAgeParam(r *http.Request) (time.Duration, error) {
	v := r.URL.Query().Get("max_age")
	if v == "" {
		return service.DefaultCurveMaxAge, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("max_age must be a duration like 30m or 1h")
	}
	return d, nil
}

// unavailable logs an upstream failure; the caller answers with empty data
func (s *Server) unavailable(r *http.Request, athleteID int64, err error) string {
	s.log.Warn().
		Err(err).
		Str("request_id", requestID(r.Context())).
		Int64("athlete_id", athleteID).
		Str("path", r.URL.Path).
		Msg("serving fallback")
	return fmt.Sprintf("data unavailable: %v", err)
}

// powerCurve answers from the cached snapshot when it is younger than max_age.
// With background=true a stale snapshot is returned with 202 while a recompute runs.
func (s *Server) powerCurve(w http.ResponseWriter, r *http.Request) {
	id, err := athleteID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_athlete", "athlete id must be an integer")
		return
	}
	maxAge, err := maxAgeParam(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_max_age", err.Error())
		return
	}
	background := false
	if v := r.URL.Query().Get("background"); v != "" {
		if background, err = strconv.ParseBool(v); err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid_background", "background must be true or false")
			return
		}
	}

	res, err := s.analytics.PowerCurve(r.Context(), id, maxAge, background)
	if err != nil {
		res = &service.CurveResult{Message: s.unavailable(r, id, err)}
	}

	status := http.StatusOK
	if res.Refreshing {
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, curveResponse(id, res))
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) {
	id, err := athleteID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_athlete", "athlete id must be an integer")
		return
	}

	resp := LoadResponse{}
	resp.LoadReport, err = s.analytics.Load(r.Context(), id)
	if err != nil {
		resp.LoadReport = &service.LoadReport{AthleteID: id, Series: []analysis.DailyLoad{}}
		resp.Message = s.unavailable(r, id, err)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) criticalPower(w http.ResponseWriter, r *http.Request) {
	id, err := athleteID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_athlete", "athlete id must be an integer")
		return
	}
	maxAge, err := maxAgeParam(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_max_age", err.Error())
		return
	}

	report, err := s.analytics.CriticalPower(r.Context(), id, maxAge)
	if err != nil {
		report = &service.CPReport{
			AthleteID: id,
			Model:     analysis.CriticalPowerModel{Kind: analysis.KindInsufficientData},
			Curve:     analysis.NewPowerCurve(analysis.StandardDurations),
			Message:   s.unavailable(r, id, err),
		}
	}
	s.writeJSON(w, http.StatusOK, CriticalPowerResponse{CPReport: report, Curve: buckets(report.Curve)})
}

func (s *Server) forecast(w http.ResponseWriter, r *http.Request) {
	id, err := athleteID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_athlete", "athlete id must be an integer")
		return
	}
	days := service.DefaultForecastDays
	if v := r.URL.Query().Get("days"); v != "" {
		if days, err = strconv.Atoi(v); err != nil || days < 1 {
			s.writeError(w, r, http.StatusBadRequest, "invalid_days", "days must be a positive integer")
			return
		}
	}

	resp := ForecastResponse{}
	resp.ForecastReport, err = s.analytics.Forecast(r.Context(), id, days)
	if err != nil {
		resp.ForecastReport = &service.ForecastReport{AthleteID: id, Days: days, Scenarios: []analysis.ScenarioForecast{}}
		resp.Message = s.unavailable(r, id, err)
	}
	s.writeJSON(w, http.StatusOK, resp)
}
