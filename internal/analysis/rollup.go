package analysis

import "time"

// FatigueLevel classifies ATL
type FatigueLevel string

const (
	FatigueVeryLow  FatigueLevel = "very_low"
	FatigueLow      FatigueLevel = "low"
	FatigueModerate FatigueLevel = "moderate"
	FatigueHigh     FatigueLevel = "high"
	FatigueVeryHigh FatigueLevel = "very_high"
)

// ClassifyFatigue maps ATL onto a fatigue level
func ClassifyFatigue(atl float64) FatigueLevel {
	switch {
	case atl > 150:
		return FatigueVeryHigh
	case atl > 100:
		return FatigueHigh
	case atl > 60:
		return FatigueModerate
	case atl > 30:
		return FatigueLow
	default:
		return FatigueVeryLow
	}
}

// FormLevel classifies TSB
type FormLevel string

const (
	FormVeryFresh    FormLevel = "very_fresh"
	FormFresh        FormLevel = "fresh"
	FormNeutral      FormLevel = "neutral"
	FormFatigued     FormLevel = "fatigued"
	FormVeryFatigued FormLevel = "very_fatigued"
)

// ClassifyForm maps TSB onto a form level
func ClassifyForm(tsb float64) FormLevel {
	switch {
	case tsb > 25:
		return FormVeryFresh
	case tsb > 5:
		return FormFresh
	case tsb > -10:
		return FormNeutral
	case tsb > -30:
		return FormFatigued
	default:
		return FormVeryFatigued
	}
}

// Recommendation returns training advice for the form level
func (f FormLevel) Recommendation() string {
	switch f {
	case FormVeryFresh:
		return "Very fresh, possibly losing fitness. Add volume or intensity."
	case FormFresh:
		return "Fresh and ready for a hard session or race."
	case FormNeutral:
		return "Balanced. Good for productive training."
	case FormFatigued:
		return "Fatigued but building fitness. Keep intensity in check."
	default:
		return "Very fatigued. Rest or recovery rides only."
	}
}

// Summary rolls up the last Days of a load series
type Summary struct {
	Days           int          `json:"days"`
	TotalTSS       float64      `json:"total_tss"`
	AvgTSS         float64      `json:"avg_tss"`
	WorkoutDays    int          `json:"workout_days"`
	Current        DailyLoad    `json:"current"`
	Fatigue        FatigueLevel `json:"fatigue"`
	Form           FormLevel    `json:"form"`
	Recommendation string       `json:"recommendation"`
}

// Summarize rolls up the last 'days' entries of series.
// Levels are classified from the final day.
func Summarize(series []DailyLoad, days int) Summary {
	s := Summary{Days: days}
	if len(series) == 0 || days <= 0 {
		s.Fatigue = ClassifyFatigue(0)
		s.Form = ClassifyForm(0)
		s.Recommendation = s.Form.Recommendation()
		return s
	}

	window := series
	if len(window) > days {
		window = window[len(window)-days:]
	}
	for _, d := range window {
		s.TotalTSS += d.TSS
		if d.TSS > 0 {
			s.WorkoutDays++
		}
	}
	s.AvgTSS = s.TotalTSS / float64(len(window))

	s.Current = window[len(window)-1]
	s.Fatigue = ClassifyFatigue(s.Current.ATL)
	s.Form = ClassifyForm(s.Current.TSB)
	s.Recommendation = s.Form.Recommendation()
	return s
}

// PeriodLoad aggregates a calendar period of a load series.
// ATL, CTL and TSB are taken from the period's last day.
type PeriodLoad struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	TotalTSS float64   `json:"total_tss"`
	ATL      float64   `json:"atl"`
	CTL      float64   `json:"ctl"`
	TSB      float64   `json:"tsb"`
}

// Weekly groups a series into Monday-starting weeks
func Weekly(series []DailyLoad) []PeriodLoad {
	return aggregate(series, func(t time.Time) time.Time {
		offset := (int(t.Weekday()) + 6) % 7
		return Day(t).AddDate(0, 0, -offset)
	})
}

// Monthly groups a series into calendar months
func Monthly(series []DailyLoad) []PeriodLoad {
	return aggregate(series, func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	})
}

// aggregate assumes series is in date order, as Model produces
func aggregate(series []DailyLoad, periodStart func(time.Time) time.Time) []PeriodLoad {
	var out []PeriodLoad
	for _, d := range series {
		start := periodStart(d.Date)
		if len(out) == 0 || !out[len(out)-1].Start.Equal(start) {
			out = append(out, PeriodLoad{Start: start})
		}
		p := &out[len(out)-1]
		p.End = Day(d.Date)
		p.TotalTSS += d.TSS
		p.ATL, p.CTL, p.TSB = d.ATL, d.CTL, d.TSB
	}
	return out
}
