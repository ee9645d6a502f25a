package analysis

import (
	"math"
	"sort"
	"time"
)

// EMA decay constants
const (
	ATLDays = 7  // Acute Training Load time constant - "Fatigue"
	CTLDays = 42 // Chronic Training Load time constant - "Fitness"

	atlDecay = 2.0 / (ATLDays + 1.0)
	ctlDecay = 2.0 / (CTLDays + 1.0)
)

// StressSample is the training stress of one session, or several on the same day
type StressSample struct {
	Date time.Time
	TSS  float64
}

// DailyLoad is the modelled load state at the end of one day
type DailyLoad struct {
	Date time.Time `json:"date"`
	TSS  float64   `json:"tss"`
	ATL  float64   `json:"atl"` // 7-day EMA - "Fatigue"
	CTL  float64   `json:"ctl"` // 42-day EMA - "Fitness"
	TSB  float64   `json:"tsb"` // today's CTL minus yesterday's ATL - "Form"
}

// Day returns midnight UTC of t's calendar date
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// step advances ATL/CTL by one day of stress. TSB uses the ATL from before the step.
func step(prev DailyLoad, date time.Time, tss float64) DailyLoad {
	atl := prev.ATL + atlDecay*(tss-prev.ATL)
	ctl := prev.CTL + ctlDecay*(tss-prev.CTL)
	return DailyLoad{
		Date: date,
		TSS:  tss,
		ATL:  atl,
		CTL:  ctl,
		TSB:  ctl - prev.ATL,
	}
}

// Model computes daily ATL/CTL/TSB from stress samples.
// Same-day samples are summed, days without samples count as zero stress,
// and the series runs from the earliest sample to the latest one, never past today.
func Model(samples []StressSample, initialATL, initialCTL float64, today time.Time) []DailyLoad {
	if len(samples) == 0 {
		return nil
	}

	byDay := make(map[time.Time]float64, len(samples))
	days := make([]time.Time, 0, len(samples))
	for _, s := range samples {
		d := Day(s.Date)
		if _, seen := byDay[d]; !seen {
			days = append(days, d)
		}
		byDay[d] += s.TSS
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	start := days[0]
	end := days[len(days)-1]
	if t := Day(today); t.Before(end) {
		end = t
	}
	if end.Before(start) {
		return nil
	}

	var series []DailyLoad
	prev := DailyLoad{ATL: initialATL, CTL: initialCTL}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		prev = step(prev, d, byDay[d])
		series = append(series, prev)
	}
	return series
}

// Current returns the last entry of a series, or the zero value
func Current(series []DailyLoad) DailyLoad {
	if len(series) == 0 {
		return DailyLoad{}
	}
	return series[len(series)-1]
}

// SessionTSS is the power-based Training Stress Score:
// seconds * NP * IF / (FTP * 3600) * 100 where IF = NP / FTP.
func SessionTSS(movingTime int, normalizedPower, ftp float64) float64 {
	if movingTime <= 0 || normalizedPower <= 0 || ftp <= 0 {
		return 0
	}
	intensity := normalizedPower / ftp
	return float64(movingTime) * normalizedPower * intensity / (ftp * 3600) * 100
}

// HRZones represents athlete's heart rate zones
type HRZones struct {
	RestingHR   float64
	MaxHR       float64
	ThresholdHR float64
}

// DefaultZones returns sensible defaults if not configured
func DefaultZones() HRZones {
	return HRZones{
		RestingHR:   50,
		MaxHR:       185,
		ThresholdHR: 165,
	}
}

// NewHRZones builds zones from config, filling gaps from DefaultZones
func NewHRZones(resting, maxHR, threshold float64) HRZones {
	z := DefaultZones()
	if resting > 0 {
		z.RestingHR = resting
	}
	if maxHR > 0 {
		z.MaxHR = maxHR
	}
	if threshold > 0 {
		z.ThresholdHR = threshold
	}
	return z
}

// hrReserveRatio clamps (hr - resting) / (max - resting) to [0, 1]
func (z HRZones) hrReserveRatio(hr float64) float64 {
	reserve := z.MaxHR - z.RestingHR
	if reserve <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, (hr-z.RestingHR)/reserve))
}

// TRIMP calculates Training Impulse (Banister model)
// TRIMP = duration (min) * ΔHR ratio * e^(b * ΔHR ratio)
// where b = 1.92 for men, 1.67 for women (using male default)
func TRIMP(movingTime int, avgHR float64, zones HRZones) float64 {
	if movingTime <= 0 || avgHR <= 0 {
		return 0
	}
	ratio := zones.hrReserveRatio(avgHR)
	b := 1.92
	return float64(movingTime) / 60.0 * ratio * math.Exp(b*ratio)
}

// HRSS is TRIMP normalized so an hour at threshold heart rate scores 100.
// Used as the stress score for sessions without power.
func HRSS(movingTime int, avgHR float64, zones HRZones) float64 {
	trimp := TRIMP(movingTime, avgHR, zones)
	if trimp == 0 {
		return 0
	}

	thresholdTRIMP := 100.0
	if zones.ThresholdHR > 0 {
		if t := TRIMP(3600, zones.ThresholdHR, zones); t > 0 {
			thresholdTRIMP = t
		}
	}
	return trimp / thresholdTRIMP * 100
}
