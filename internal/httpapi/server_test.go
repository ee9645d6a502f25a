package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strava-power/internal/analysis"
	"strava-power/internal/scheduler"
	"strava-power/internal/service"
	"strava-power/internal/store"
)

type fakeAnalytics struct {
	curve      *service.CurveResult
	err        error
	maxAge     time.Duration
	background bool
	days       int
}

func (f *fakeAnalytics) PowerCurve(ctx context.Context, athleteID int64, maxAge time.Duration, background bool) (*service.CurveResult, error) {
	f.maxAge, f.background = maxAge, background
	return f.curve, f.err
}

func (f *fakeAnalytics) Load(ctx context.Context, athleteID int64) (*service.LoadReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.LoadReport{AthleteID: athleteID, Series: []analysis.DailyLoad{{CTL: 40, ATL: 50}}}, nil
}

func (f *fakeAnalytics) CriticalPower(ctx context.Context, athleteID int64, maxAge time.Duration) (*service.CPReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.CPReport{
		AthleteID: athleteID,
		Model:     analysis.CriticalPowerModel{CP: 250, WPrime: 20000, Kind: analysis.KindTwoParameter},
		Curve:     analysis.NewPowerCurve(analysis.StandardDurations),
	}, nil
}

func (f *fakeAnalytics) Forecast(ctx context.Context, athleteID int64, days int) (*service.ForecastReport, error) {
	f.days = days
	if f.err != nil {
		return nil, f.err
	}
	current := analysis.DailyLoad{CTL: 50}
	return &service.ForecastReport{AthleteID: athleteID, Days: days, Current: current, Scenarios: analysis.Scenarios(current, days)}, nil
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func newServer(a Analytics) *Server {
	return New(a, prometheus.NewRegistry(), Config{}, zerolog.Nop())
}

func TestHealth(t *testing.T) {
	rr := get(t, newServer(&fakeAnalytics{}).Handler(), "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Len(t, rr.Header().Get("X-Request-ID"), 8)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestPowerCurveParams(t *testing.T) {
	curve := analysis.NewPowerCurve(analysis.StandardDurations)
	curve[analysis.Dur5s] = 1000
	fake := &fakeAnalytics{curve: &service.CurveResult{Record: &store.CurveRecord{Curve: curve, ComputedAt: time.Now()}}}
	h := newServer(fake).Handler()

	rr := get(t, h, "/athletes/42/power-curve")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.DefaultCurveMaxAge, fake.maxAge)
	assert.False(t, fake.background)

	var body CurveResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, int64(42), body.AthleteID)
	require.Len(t, body.Buckets, len(analysis.StandardDurations))
	assert.Equal(t, "5s", body.Buckets[0].Duration)
	assert.Equal(t, 1000.0, body.Buckets[0].Watts)
	assert.NotNil(t, body.ComputedAt)

	rr = get(t, h, "/athletes/42/power-curve?max_age=10m&background=true")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 10*time.Minute, fake.maxAge)
	assert.True(t, fake.background)
}

func TestPowerCurveBadParams(t *testing.T) {
	h := newServer(&fakeAnalytics{}).Handler()

	for _, target := range []string{
		"/athletes/42/power-curve?max_age=soon",
		"/athletes/42/power-curve?background=maybe",
	} {
		rr := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}

	rr := get(t, h, "/athletes/abc/power-curve")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPowerCurveRefreshingIsAccepted(t *testing.T) {
	fake := &fakeAnalytics{curve: &service.CurveResult{Refreshing: true, Message: "power curve is being recomputed"}}
	rr := get(t, newServer(fake).Handler(), "/athletes/42/power-curve?background=true")

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var body CurveResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Refreshing)
	assert.Nil(t, body.ComputedAt)
}

func TestFallbackOnError(t *testing.T) {
	h := newServer(&fakeAnalytics{err: errors.New("upstream down")}).Handler()

	for _, path := range []string{"power-curve", "load", "critical-power", "forecast"} {
		rr := get(t, h, "/athletes/42/"+path)
		assert.Equal(t, http.StatusOK, rr.Code, path)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), path)
		assert.Contains(t, body["message"], "upstream down", path)
	}
}

func TestForecastDays(t *testing.T) {
	fake := &fakeAnalytics{}
	h := newServer(fake).Handler()

	rr := get(t, h, "/athletes/42/forecast")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.DefaultForecastDays, fake.days)

	rr = get(t, h, "/athletes/42/forecast?days=30")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 30, fake.days)

	var body ForecastResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Scenarios, len(analysis.AllScenarios))

	rr = get(t, h, "/athletes/42/forecast?days=-1")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCriticalPower(t *testing.T) {
	rr := get(t, newServer(&fakeAnalytics{}).Handler(), "/athletes/42/critical-power")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	model := body["model"].(map[string]any)
	assert.Equal(t, 250.0, model["cp"])
	assert.Equal(t, "two_parameter", model["kind"])
	assert.Len(t, body["curve"], len(analysis.StandardDurations))
}

func TestNotFound(t *testing.T) {
	rr := get(t, newServer(&fakeAnalytics{}).Handler(), "/nope")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "endpoint_not_found", body.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	service.NewMetrics(reg).CurveRequests.WithLabelValues("fresh").Inc()

	rr := get(t, New(&fakeAnalytics{}, reg, Config{}, zerolog.Nop()).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "strava_power_curve_requests_total"))
}

// The real service behind the API: max_age decides between the snapshot and a recompute
func TestPowerCurveMaxAgeWithService(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sched := scheduler.New(scheduler.DefaultConfig(), zerolog.Nop(), nil)
	t.Cleanup(sched.Close)

	// no upstream is configured, so any recompute fails
	svc := service.New(db, nil, sched, service.Options{}, zerolog.Nop())
	t.Cleanup(svc.Wait)

	curve := analysis.NewPowerCurve(analysis.StandardDurations)
	curve[analysis.Dur1m] = 450
	require.NoError(t, db.SavePowerCurve(42, curve, time.Now().Add(-2*time.Hour)))

	h := newServer(svc).Handler()

	rr := get(t, h, "/athletes/42/power-curve?max_age=3h")
	require.Equal(t, http.StatusOK, rr.Code)
	var body CurveResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.False(t, body.Stale)
	assert.Equal(t, 450.0, body.Buckets[3].Watts)

	rr = get(t, h, "/athletes/42/power-curve?max_age=1h")
	require.Equal(t, http.StatusOK, rr.Code)
	body = CurveResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Stale)
	assert.Equal(t, 450.0, body.Buckets[3].Watts)
	assert.NotEmpty(t, body.Message)

	rr = get(t, h, "/athletes/42/power-curve?max_age=1h&background=true")
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = get(t, h, "/athletes/7/power-curve")
	require.Equal(t, http.StatusOK, rr.Code)
	body = CurveResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Nil(t, body.ComputedAt)
	assert.Contains(t, body.Message, "unavailable")
}
