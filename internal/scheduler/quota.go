package scheduler

import "time"

// Usage is what one upstream response reported about quota consumption.
// A zero limit means the window was not reported.
type Usage struct {
	ShortUsed  int
	ShortLimit int
	DailyUsed  int
	DailyLimit int
}

// QuotaState tracks one upstream rate limit window.
// Windows are aligned to multiples of Window (quarter hours, UTC midnight).
type QuotaState struct {
	Used        int
	Limit       int
	WindowStart time.Time
	Window      time.Duration
}

// Fraction is Used/Limit, or 0 while the limit is unknown
func (q QuotaState) Fraction() float64 {
	if q.Limit <= 0 {
		return 0
	}
	return float64(q.Used) / float64(q.Limit)
}

// ResetsAt is when the current window rolls over
func (q QuotaState) ResetsAt() time.Time {
	return q.WindowStart.Add(q.Window)
}

// Remaining requests in the window, or -1 while the limit is unknown
func (q QuotaState) Remaining() int {
	if q.Limit <= 0 {
		return -1
	}
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}

// roll starts a fresh window once the current one has elapsed
func (q *QuotaState) roll(now time.Time) {
	if q.WindowStart.IsZero() || !now.Before(q.ResetsAt()) {
		q.WindowStart = now.Truncate(q.Window)
		q.Used = 0
	}
}

func (q *QuotaState) observe(used, limit int, now time.Time) {
	if limit <= 0 {
		return
	}
	q.roll(now)
	q.Used = used
	q.Limit = limit
}
