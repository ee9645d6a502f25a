package analysis

import "math"

// ModelKind says whether a critical power fit was possible
type ModelKind string

const (
	KindTwoParameter     ModelKind = "two_parameter"
	KindInsufficientData ModelKind = "insufficient_data"
)

// WPrimeTau is the W' reconstitution time constant in seconds
const WPrimeTau = 546.0

// CPAnchors are the curve buckets the two-parameter model is fitted to
var CPAnchors = []Duration{Dur3m, Dur10m, Dur20m}

// CriticalPowerModel is the two-parameter hyperbolic model P = CP + W'/t
type CriticalPowerModel struct {
	CP     float64   `json:"cp"`      // watts sustainable indefinitely
	WPrime float64   `json:"w_prime"` // joules available above CP
	Kind   ModelKind `json:"kind"`
}

// FitCriticalPower fits CP and W' by least squares over work = CP*t + W'
// at the anchor durations. Any missing or zero anchor gives KindInsufficientData.
func FitCriticalPower(curve PowerCurve) CriticalPowerModel {
	var sumT, sumW, sumTT, sumTW float64
	n := float64(len(CPAnchors))

	for _, d := range CPAnchors {
		p, ok := curve[d]
		if !ok || p <= 0 {
			return CriticalPowerModel{Kind: KindInsufficientData}
		}
		t := float64(d)
		w := p * t
		sumT += t
		sumW += w
		sumTT += t * t
		sumTW += t * w
	}

	denom := n*sumTT - sumT*sumT
	if denom == 0 {
		return CriticalPowerModel{Kind: KindInsufficientData}
	}
	cp := (n*sumTW - sumT*sumW) / denom
	wPrime := (sumW - cp*sumT) / n

	return CriticalPowerModel{CP: cp, WPrime: wPrime, Kind: KindTwoParameter}
}

// TimeToExhaustion is how long power can be held, W'/(power-CP).
// At or below CP it is unbounded: +Inf and ok=false.
func (m CriticalPowerModel) TimeToExhaustion(power float64) (seconds float64, ok bool) {
	if m.Kind != KindTwoParameter || power <= m.CP {
		return math.Inf(1), false
	}
	return m.WPrime / (power - m.CP), true
}

// Balance tracks W' through a 1Hz power series. Above CP the excess is spent;
// at or below CP the balance recovers exponentially towards W'.
// The result has one value per sample, clamped to [0, W'].
func Balance(power []float64, cp, wPrime float64) []float64 {
	out := make([]float64, len(power))
	bal := wPrime
	recovery := 1 - math.Exp(-1/WPrimeTau)

	for i, p := range power {
		if p > cp {
			bal -= p - cp
		} else {
			bal += (wPrime - bal) * recovery
		}
		bal = math.Max(0, math.Min(wPrime, bal))
		out[i] = bal
	}
	return out
}

// MinBalance returns the deepest point of a balance series and its index,
// or (0, -1) for an empty series.
func MinBalance(balance []float64) (float64, int) {
	if len(balance) == 0 {
		return 0, -1
	}
	minIdx := 0
	for i, b := range balance {
		if b < balance[minIdx] {
			minIdx = i
		}
	}
	return balance[minIdx], minIdx
}
