package analysis

// Forecast projects ATL/CTL/TSB forward from current using planned daily stress.
// Entry i is dated i+1 days after current.Date.
func Forecast(current DailyLoad, planned []float64) []DailyLoad {
	out := make([]DailyLoad, 0, len(planned))
	prev := current
	for i, tss := range planned {
		prev = step(prev, Day(current.Date).AddDate(0, 0, i+1), tss)
		out = append(out, prev)
	}
	return out
}

// Scenario is a named training plan generator
type Scenario string

const (
	ScenarioRest        Scenario = "rest"
	ScenarioMaintenance Scenario = "maintenance"
	ScenarioModerate    Scenario = "moderate"
	ScenarioIntense     Scenario = "intense"
)

// AllScenarios in presentation order
var AllScenarios = []Scenario{ScenarioRest, ScenarioMaintenance, ScenarioModerate, ScenarioIntense}

// Plan generates daily stress for the scenario from the athlete's current CTL
func (s Scenario) Plan(ctl float64, days int) []float64 {
	if days <= 0 {
		return nil
	}
	plan := make([]float64, days)
	for i := range plan {
		switch s {
		case ScenarioMaintenance:
			plan[i] = ctl
		case ScenarioModerate:
			// every 7th day off
			if (i+1)%7 != 0 {
				plan[i] = ctl * 1.1
			}
		case ScenarioIntense:
			// 3 on, 1 off
			if i%4 != 3 {
				plan[i] = ctl * 1.3
			}
		}
	}
	return plan
}

// ScenarioForecast is one scenario's plan and projection
type ScenarioForecast struct {
	Scenario Scenario    `json:"scenario"`
	Plan     []float64   `json:"plan"`
	Loads    []DailyLoad `json:"loads"`
	Final    DailyLoad   `json:"final"`
}

// Scenarios forecasts every scenario over 'days' from current
func Scenarios(current DailyLoad, days int) []ScenarioForecast {
	out := make([]ScenarioForecast, 0, len(AllScenarios))
	for _, s := range AllScenarios {
		plan := s.Plan(current.CTL, days)
		loads := Forecast(current, plan)
		out = append(out, ScenarioForecast{
			Scenario: s,
			Plan:     plan,
			Loads:    loads,
			Final:    Current(loads),
		})
	}
	return out
}
