package analysis

import (
	"math"
	"testing"
	"time"
)

func constantStream(id int64, watts float64, seconds int) PowerStream {
	s := PowerStream{SessionID: id, Power: make([]float64, seconds), Time: make([]float64, seconds)}
	for i := range s.Power {
		s.Power[i] = watts
		s.Time[i] = float64(i)
	}
	return s
}

func TestDurationString(t *testing.T) {
	tests := []struct {
		d    Duration
		want string
	}{
		{Dur5s, "5s"},
		{Dur30s, "30s"},
		{Dur1m, "1m"},
		{Dur45m, "45m"},
		{Dur1h, "1h"},
		{Duration(90), "90s"},
	}
	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("Duration(%d).String() = %q, want %q", int(tt.d), got, tt.want)
		}
	}
}

func TestSampleInterval(t *testing.T) {
	tests := []struct {
		name  string
		times []float64
		want  float64
	}{
		{"missing", nil, 1},
		{"single sample", []float64{0}, 1},
		{"one second", []float64{0, 1, 2, 3}, 1},
		{"two seconds", []float64{10, 12, 14}, 2},
		{"degenerate", []float64{5, 5, 5}, 1},
		{"decreasing", []float64{3, 2, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SampleInterval(tt.times); got != tt.want {
				t.Errorf("SampleInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractConstantPower(t *testing.T) {
	// An hour at 250W: every bucket up to and including 1h is exactly 250W
	curve := Extract([]PowerStream{constantStream(1, 250, 3600)}, StandardDurations, ExtractOptions{})

	for _, d := range StandardDurations {
		if curve[d] != 250 {
			t.Errorf("curve[%s] = %v, want 250", d, curve[d])
		}
	}
}

func TestExtractShortSessionLeavesLongBucketsZero(t *testing.T) {
	curve := Extract([]PowerStream{constantStream(1, 300, 600)}, StandardDurations, ExtractOptions{})

	if curve[Dur10m] != 300 {
		t.Errorf("curve[10m] = %v, want 300", curve[Dur10m])
	}
	for _, d := range []Duration{Dur15m, Dur20m, Dur30m, Dur45m, Dur1h} {
		if curve[d] != 0 {
			t.Errorf("curve[%s] = %v, want 0 for a 10 minute session", d, curve[d])
		}
	}
}

func TestSessionBestsSlidingWindow(t *testing.T) {
	// 100W with a 10s block at 400W in the middle
	s := constantStream(1, 100, 60)
	for i := 20; i < 30; i++ {
		s.Power[i] = 400
	}

	bests := SessionBests(s, []Duration{Dur5s, Dur15s, Dur1m, Dur2m})

	want := []BucketBest{
		{Duration: Dur5s, Watts: 400, OK: true},
		{Duration: Dur15s, Watts: (10*400 + 5*100) / 15.0, OK: true},
		{Duration: Dur1m, Watts: (10*400 + 50*100) / 60.0, OK: true},
		{Duration: Dur2m, Watts: 0, OK: false},
	}
	for i, w := range want {
		got := bests[i]
		if got.Duration != w.Duration || got.OK != w.OK || math.Abs(got.Watts-w.Watts) > 1e-9 {
			t.Errorf("bests[%d] = %+v, want %+v", i, got, w)
		}
	}
}

func TestSessionBestsUsesSampleInterval(t *testing.T) {
	// 2s recording: a 5s bucket needs ceil(5/2) = 3 samples
	s := PowerStream{
		Power: []float64{100, 300, 300, 300, 100},
		Time:  []float64{0, 2, 4, 6, 8},
	}
	bests := SessionBests(s, []Duration{Dur5s, Dur15s})

	if !bests[0].OK || bests[0].Watts != 300 {
		t.Errorf("5s best = %+v, want 300W", bests[0])
	}
	if bests[1].OK {
		t.Errorf("15s needs 8 samples of 2s data, got %+v", bests[1])
	}
}

func TestSessionBestsEmpty(t *testing.T) {
	for _, b := range SessionBests(PowerStream{}, StandardDurations) {
		if b.OK {
			t.Errorf("empty session produced %+v", b)
		}
	}
}

func TestExtractSinceFilter(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	old := constantStream(1, 400, 60)
	old.StartDate = now.AddDate(0, -3, 0)
	recent := constantStream(2, 200, 60)
	recent.StartDate = now.AddDate(0, 0, -3)

	curve := Extract([]PowerStream{old, recent}, []Duration{Dur1m}, ExtractOptions{Since: now.AddDate(0, -1, 0)})
	if curve[Dur1m] != 200 {
		t.Errorf("curve[1m] = %v, want 200 (old session excluded)", curve[Dur1m])
	}
}

func TestMergeCommutative(t *testing.T) {
	a := PowerCurve{Dur5s: 800, Dur1m: 400, Dur20m: 0}
	b := PowerCurve{Dur5s: 750, Dur1m: 420, Dur20m: 260, Dur1h: 230}

	ab := Merge(a, b)
	ba := Merge(b, a)

	want := PowerCurve{Dur5s: 800, Dur1m: 420, Dur20m: 260, Dur1h: 230}
	for d, w := range want {
		if ab[d] != w || ba[d] != w {
			t.Errorf("bucket %s: Merge(a,b)=%v Merge(b,a)=%v, want %v", d, ab[d], ba[d], w)
		}
	}
	if len(ab) != len(ba) {
		t.Errorf("merged curves differ in size: %d vs %d", len(ab), len(ba))
	}
}

func TestExtractSessionOrderIndependent(t *testing.T) {
	// a: strong short efforts over 10 minutes; b: a steadier, longer ride
	a := constantStream(1, 220, 600)
	for i := 60; i < 90; i++ {
		a.Power[i] = 520
	}
	b := constantStream(2, 260, 1500)
	for i := 300; i < 305; i++ {
		b.Power[i] = 900
	}

	ab := Extract([]PowerStream{a, b}, StandardDurations, ExtractOptions{})
	ba := Extract([]PowerStream{b, a}, StandardDurations, ExtractOptions{})

	if len(ab) != len(ba) {
		t.Fatalf("curves differ in size: %d vs %d", len(ab), len(ba))
	}
	for _, d := range StandardDurations {
		if ab[d] != ba[d] {
			t.Errorf("bucket %s: [a,b]=%v [b,a]=%v", d, ab[d], ba[d])
		}
	}
	if ab[Dur5s] != 900 {
		t.Errorf("5s best = %v, want 900 from session b", ab[Dur5s])
	}
	if ab[Dur30s] != 520 {
		t.Errorf("30s best = %v, want 520 from session a", ab[Dur30s])
	}
}

func TestExtractParallelMatchesExtract(t *testing.T) {
	var sessions []PowerStream
	for i := 0; i < 12; i++ {
		s := constantStream(int64(i), 150+float64(i*10), 300+i*120)
		for j := i; j < len(s.Power); j += 17 {
			s.Power[j] += float64((j * 7) % 90)
		}
		sessions = append(sessions, s)
	}

	serial := Extract(sessions, StandardDurations, ExtractOptions{})
	for _, workers := range []int{0, 1, 3, 8} {
		parallel := ExtractParallel(sessions, StandardDurations, ExtractOptions{}, workers)
		for _, d := range StandardDurations {
			if serial[d] != parallel[d] {
				t.Errorf("workers=%d bucket %s: parallel %v != serial %v", workers, d, parallel[d], serial[d])
			}
		}
	}
}

func TestPowerCurveHelpers(t *testing.T) {
	c := NewPowerCurve(StandardDurations)
	if !c.IsEmpty() {
		t.Error("new curve should be empty")
	}
	ds := c.Durations()
	if len(ds) != len(StandardDurations) || ds[0] != Dur5s || ds[len(ds)-1] != Dur1h {
		t.Errorf("Durations() = %v", ds)
	}
	c[Dur5s] = 1
	if c.IsEmpty() {
		t.Error("curve with a positive bucket should not be empty")
	}
}
