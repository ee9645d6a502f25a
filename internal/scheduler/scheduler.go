// Package scheduler serializes calls to a rate-limited upstream.
//
// Every call goes through one FIFO queue drained by a single goroutine. Before
// each dispatch the drain loop checks the quota the upstream last reported and
// sleeps until the window resets when usage is above the throttle fraction.
// Otherwise it spaces requests by a minimum interval. Tasks the upstream
// rejects for rate limiting go back to the front of the queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	// ErrSchedulerClosed is returned for tasks that were pending when Close was called
	ErrSchedulerClosed = errors.New("scheduler closed")

	// ErrRetriesExhausted wraps the last rejection once MaxRetries is used up
	ErrRetriesExhausted = errors.New("upstream retries exhausted")
)

// RetryAfterError is implemented by errors that mean the upstream throttled the call
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

// Task is one upstream call. It returns the quota usage the upstream reported,
// including on failure.
type Task func(ctx context.Context) (Usage, error)

// Config tunes a Scheduler
type Config struct {
	// Name labels logs and metrics, e.g. "strava"
	Name string

	MinInterval      time.Duration
	ThrottleFraction float64
	MinResetWait     time.Duration
	BackoffCap       time.Duration
	MaxRetries       int

	ShortWindow time.Duration
	DailyWindow time.Duration
}

// DefaultConfig matches Strava's published limits
func DefaultConfig() Config {
	return Config{
		Name:             "strava",
		MinInterval:      150 * time.Millisecond,
		ThrottleFraction: 0.9,
		MinResetWait:     5 * time.Second,
		BackoffCap:       60 * time.Second,
		MaxRetries:       5,
		ShortWindow:      15 * time.Minute,
		DailyWindow:      24 * time.Hour,
	}
}

type task struct {
	ctx      context.Context
	fn       Task
	result   chan error
	enqueued time.Time
	attempts int
}

func (t *task) finish(err error) {
	t.result <- err
}

// Scheduler is a single-consumer request queue for one upstream
type Scheduler struct {
	cfg     Config
	log     zerolog.Logger
	metrics *Metrics
	limiter *rate.Limiter
	now     func() time.Time

	mu     sync.Mutex
	queue  []*task
	short  QuotaState
	daily  QuotaState
	closed bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts a scheduler. Metrics may be nil.
func New(cfg Config, log zerolog.Logger, metrics *Metrics) *Scheduler {
	d := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = d.Name
	}
	if cfg.ThrottleFraction <= 0 {
		cfg.ThrottleFraction = d.ThrottleFraction
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = d.BackoffCap
	}
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = d.ShortWindow
	}
	if cfg.DailyWindow <= 0 {
		cfg.DailyWindow = d.DailyWindow
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:     cfg,
		log:     log.With().Str("component", "scheduler").Str("upstream", cfg.Name).Logger(),
		metrics: metrics,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		short:   QuotaState{Window: cfg.ShortWindow},
		daily:   QuotaState{Window: cfg.DailyWindow},
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Do enqueues fn and blocks until it has run, the caller's context ends,
// or the scheduler is closed.
func (s *Scheduler) Do(ctx context.Context, fn Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := &task{
		ctx:      ctx,
		fn:       fn,
		result:   make(chan error, 1),
		enqueued: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.queue = append(s.queue, t)
	s.metrics.QueueDepth.WithLabelValues(s.cfg.Name).Set(float64(len(s.queue)))
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-t.result:
		return err
	case <-ctx.Done():
		// The drain loop drops the task when it reaches it
		return ctx.Err()
	}
}

// Enqueue runs op through the scheduler and returns its value
func Enqueue[T any](ctx context.Context, s *Scheduler, op func(ctx context.Context) (T, Usage, error)) (T, error) {
	var out T
	err := s.Do(ctx, func(ctx context.Context) (Usage, error) {
		v, usage, err := op(ctx)
		if err == nil {
			out = v
		}
		return usage, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Quota returns snapshots of the short and daily windows
func (s *Scheduler) Quota() (short, daily QuotaState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.short.roll(now)
	s.daily.roll(now)
	return s.short, s.daily
}

// Pending is the number of queued tasks not yet dispatched
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops the drain loop. Queued tasks fail with ErrSchedulerClosed;
// a task already executing finishes normally.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done

	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, t := range pending {
		s.metrics.Tasks.WithLabelValues(s.cfg.Name, "closed").Inc()
		t.finish(ErrSchedulerClosed)
	}
	s.metrics.QueueDepth.WithLabelValues(s.cfg.Name).Set(0)
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		t, ok := s.next()
		if !ok {
			return
		}
		s.dispatch(t)
	}
}

// next pops the queue head, blocking while the queue is empty
func (s *Scheduler) next() (*task, bool) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, false
		}
		if len(s.queue) > 0 {
			t := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.metrics.QueueDepth.WithLabelValues(s.cfg.Name).Set(float64(len(s.queue)))
			s.mu.Unlock()
			return t, true
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.ctx.Done():
			return nil, false
		}
	}
}

func (s *Scheduler) pushFront(t *task) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.finish(ErrSchedulerClosed)
		return
	}
	s.queue = append([]*task{t}, s.queue...)
	s.metrics.QueueDepth.WithLabelValues(s.cfg.Name).Set(float64(len(s.queue)))
	s.mu.Unlock()
}

func (s *Scheduler) dispatch(t *task) {
	if err := t.ctx.Err(); err != nil {
		s.metrics.Tasks.WithLabelValues(s.cfg.Name, "canceled").Inc()
		t.finish(err)
		return
	}

	if wait := s.quotaWait(); wait > 0 {
		s.metrics.Throttles.WithLabelValues(s.cfg.Name, "quota").Inc()
		s.log.Warn().Dur("wait", wait).Msg("quota nearly exhausted, waiting for window reset")
		if err := s.sleep(t.ctx, wait); err != nil {
			s.abandon(t, err)
			return
		}
	}

	r := s.limiter.Reserve()
	if err := s.sleep(t.ctx, r.Delay()); err != nil {
		r.Cancel()
		s.abandon(t, err)
		return
	}

	if t.attempts == 0 {
		s.metrics.QueueWait.WithLabelValues(s.cfg.Name).Observe(time.Since(t.enqueued).Seconds())
	}

	usage, err := t.fn(t.ctx)
	s.observe(usage)

	var throttled RetryAfterError
	if err == nil || !errors.As(err, &throttled) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.Tasks.WithLabelValues(s.cfg.Name, outcome).Inc()
		t.finish(err)
		return
	}

	t.attempts++
	s.metrics.Throttles.WithLabelValues(s.cfg.Name, "rejected").Inc()
	if t.attempts > s.cfg.MaxRetries {
		s.metrics.Tasks.WithLabelValues(s.cfg.Name, "exhausted").Inc()
		t.finish(fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, t.attempts, err))
		return
	}

	backoff := throttled.RetryAfter()
	if backoff <= 0 {
		// no hint from the upstream
		backoff = s.cfg.MinResetWait
	}
	if backoff > s.cfg.BackoffCap {
		backoff = s.cfg.BackoffCap
	}
	s.log.Warn().
		Int("attempt", t.attempts).
		Dur("backoff", backoff).
		Err(err).
		Msg("upstream throttled request, requeueing")

	s.pushFront(t)
	// Failure here means Close was called; Close fails the requeued task
	_ = s.sleep(s.ctx, backoff)
}

// abandon finishes a task whose wait was interrupted
func (s *Scheduler) abandon(t *task, err error) {
	outcome := "canceled"
	if errors.Is(err, ErrSchedulerClosed) {
		outcome = "closed"
	}
	s.metrics.Tasks.WithLabelValues(s.cfg.Name, outcome).Inc()
	t.finish(err)
}

// quotaWait is how long to pause before the next request, 0 if not throttled
func (s *Scheduler) quotaWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var wait time.Duration
	for _, q := range []*QuotaState{&s.short, &s.daily} {
		q.roll(now)
		if q.Fraction() <= s.cfg.ThrottleFraction {
			continue
		}
		d := q.ResetsAt().Sub(now)
		if d < s.cfg.MinResetWait {
			d = s.cfg.MinResetWait
		}
		if d > wait {
			wait = d
		}
	}
	return wait
}

func (s *Scheduler) observe(u Usage) {
	s.mu.Lock()
	now := s.now()
	s.short.observe(u.ShortUsed, u.ShortLimit, now)
	s.daily.observe(u.DailyUsed, u.DailyLimit, now)
	short, daily := s.short, s.daily
	s.mu.Unlock()

	if short.Limit > 0 {
		s.metrics.QuotaUsed.WithLabelValues(s.cfg.Name, "short").Set(float64(short.Used))
		s.metrics.QuotaLimit.WithLabelValues(s.cfg.Name, "short").Set(float64(short.Limit))
	}
	if daily.Limit > 0 {
		s.metrics.QuotaUsed.WithLabelValues(s.cfg.Name, "daily").Set(float64(daily.Used))
		s.metrics.QuotaLimit.WithLabelValues(s.cfg.Name, "daily").Set(float64(daily.Limit))
	}
}

// sleep waits for d, returning early if ctx ends or the scheduler closes
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-s.ctx.Done():
		return ErrSchedulerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
