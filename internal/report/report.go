// Package report renders service results as styled terminal text
package report

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"strava-power/internal/analysis"
	"strava-power/internal/service"
)

const (
	chartWidth  = 60
	chartHeight = 10
	// weeks shown in the load table
	weeklyRows = 8
)

// Sync renders the outcome of a sync
func Sync(r *service.SyncResult) string {
	lines := []string{
		metric("Fetched", fmt.Sprintf("%d", r.SessionsFetched), ""),
		metric("Stored", fmt.Sprintf("%d", r.SessionsStored), ""),
		metric("With power", fmt.Sprintf("%d", r.WithPower), ""),
	}
	for _, err := range r.Errors {
		lines = append(lines, errorStyle.Render(err.Error()))
	}
	return card(fmt.Sprintf("Sync: athlete %d", r.AthleteID), lines...)
}

// Curve renders a power curve table with a bar per bucket and a chart
func Curve(athleteID int64, res *service.CurveResult) string {
	curve := res.Curve()
	durations := curve.Durations()

	var best float64
	for _, d := range durations {
		best = max(best, curve[d])
	}

	var sections []string
	sections = append(sections, headerStyle.Render(fmt.Sprintf("Power curve: athlete %d", athleteID)))

	switch {
	case res.Record != nil && res.Stale:
		sections = append(sections, warningStyle.Render(fmt.Sprintf("stale, computed %s", res.Record.ComputedAt.Local().Format("Jan 02 15:04"))))
	case res.Record != nil:
		sections = append(sections, mutedStyle.Render(fmt.Sprintf("computed %s", res.Record.ComputedAt.Local().Format("Jan 02 15:04"))))
	}
	if res.Message != "" {
		sections = append(sections, mutedStyle.Render(res.Message))
	}

	if curve.IsEmpty() {
		sections = append(sections, mutedStyle.Render("No power data yet"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-5s  %7s  %s", "Time", "Power", ""))}
	values := make([]float64, 0, len(durations))
	for _, d := range durations {
		w := curve[d]
		frac := 0.0
		if best > 0 {
			frac = w / best
		}
		rows = append(rows, fmt.Sprintf("%-5s  %7s  %s", d, watts(w), bar(frac, 30)))
		values = append(values, w)
	}
	sections = append(sections, card("Best efforts", rows...))

	if len(values) > 1 {
		graph := asciigraph.Plot(values,
			asciigraph.Height(chartHeight),
			asciigraph.Width(chartWidth),
			asciigraph.Precision(0),
			asciigraph.Caption(fmt.Sprintf("watts, %s to %s", durations[0], durations[len(durations)-1])),
		)
		sections = append(sections, card("Curve", graph))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Load renders current fitness, rollups, a CTL/ATL/TSB chart and recent weeks
func Load(r *service.LoadReport) string {
	var sections []string
	sections = append(sections, headerStyle.Render(fmt.Sprintf("Training load: athlete %d", r.AthleteID)))
	if !r.LastSync.IsZero() {
		sections = append(sections, mutedStyle.Render("last sync "+r.LastSync.Local().Format("Jan 02 15:04")))
	}
	if len(r.Series) == 0 {
		sections = append(sections, mutedStyle.Render("No sessions yet. Run sync first."))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	cur := r.Current
	fitness := card("Current",
		metric("Fitness (CTL)", fmt.Sprintf("%.0f", cur.CTL), ""),
		metric("Fatigue (ATL)", fmt.Sprintf("%.0f", cur.ATL), ""),
		metric("Form (TSB)", fmt.Sprintf("%.0f", cur.TSB), signed(cur.TSB)),
		"",
		mutedStyle.Render(string(r.Week.Form)),
		mutedStyle.Render(r.Week.Recommendation),
	)
	cards := lipgloss.JoinHorizontal(lipgloss.Top, fitness, summaryCard("Last 7 days", r.Week), summaryCard("Last 30 days", r.Month))
	sections = append(sections, cards)

	if len(r.Series) > 1 {
		sections = append(sections, card("CTL / ATL / TSB", loadChart(r.Series)))
	}

	if len(r.Weekly) > 0 {
		sections = append(sections, card("Weekly", periodRows(r.Weekly, weeklyRows)...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func summaryCard(title string, s analysis.Summary) string {
	frac := 0.0
	if s.Days > 0 {
		frac = float64(s.WorkoutDays) / float64(s.Days)
	}
	return card(title,
		metric("Total TSS", fmt.Sprintf("%.0f", s.TotalTSS), ""),
		metric("Avg TSS/day", fmt.Sprintf("%.0f", s.AvgTSS), ""),
		metric("Workout days", fmt.Sprintf("%d", s.WorkoutDays), ""),
		bar(frac, 20),
		metric("Fatigue", string(s.Fatigue), ""),
	)
}

func loadChart(series []analysis.DailyLoad) string {
	ctl := make([]float64, len(series))
	atl := make([]float64, len(series))
	tsb := make([]float64, len(series))
	for i, d := range series {
		ctl[i], atl[i], tsb[i] = d.CTL, d.ATL, d.TSB
	}
	return asciigraph.PlotMany([][]float64{ctl, atl, tsb},
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red, asciigraph.Green),
		asciigraph.SeriesLegends("CTL", "ATL", "TSB"),
	)
}

func periodRows(periods []analysis.PeriodLoad, limit int) []string {
	if len(periods) > limit {
		periods = periods[len(periods)-limit:]
	}
	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-10s  %6s  %5s  %5s  %5s", "Week of", "TSS", "CTL", "ATL", "TSB"))}
	for _, p := range periods {
		rows = append(rows, fmt.Sprintf("%-10s  %6.0f  %5.0f  %5.0f  %5.0f",
			p.Start.Format("Jan 02"), p.TotalTSS, p.CTL, p.ATL, p.TSB))
	}
	return rows
}

// CriticalPower renders the CP fit and time to exhaustion table
func CriticalPower(r *service.CPReport) string {
	var sections []string
	sections = append(sections, headerStyle.Render(fmt.Sprintf("Critical power: athlete %d", r.AthleteID)))

	if r.Model.Kind != analysis.KindTwoParameter {
		msg := r.Message
		if msg == "" {
			msg = "Not enough data to fit critical power"
		}
		sections = append(sections, mutedStyle.Render(msg))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}
	if r.Message != "" {
		sections = append(sections, warningStyle.Render(r.Message))
	}

	model := card("Model",
		metric("CP", watts(r.Model.CP), ""),
		metric("W'", fmt.Sprintf("%.1f kJ", r.Model.WPrime/1000), ""),
	)

	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%7s  %10s", "Power", "Lasts"))}
	for _, p := range r.TTE {
		rows = append(rows, fmt.Sprintf("%7s  %10s", watts(p.Watts), formatSeconds(p.Seconds)))
	}
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, model, card("Time to exhaustion", rows...)))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Forecast renders each scenario's end state and a TSB chart
func Forecast(r *service.ForecastReport) string {
	var sections []string
	sections = append(sections, headerStyle.Render(fmt.Sprintf("Forecast: athlete %d, %d days", r.AthleteID, r.Days)))
	sections = append(sections, metric("Today", fmt.Sprintf("CTL %.0f  ATL %.0f  TSB %.0f", r.Current.CTL, r.Current.ATL, r.Current.TSB), ""))

	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-12s  %5s  %5s  %5s  %s", "Scenario", "CTL", "ATL", "TSB", "Form"))}
	series := make([][]float64, 0, len(r.Scenarios))
	legends := make([]string, 0, len(r.Scenarios))
	for _, sc := range r.Scenarios {
		f := sc.Final
		rows = append(rows, fmt.Sprintf("%-12s  %5.0f  %5.0f  %5.0f  %s",
			sc.Scenario, f.CTL, f.ATL, f.TSB, analysis.ClassifyForm(f.TSB)))

		tsb := make([]float64, len(sc.Loads))
		for i, d := range sc.Loads {
			tsb[i] = d.TSB
		}
		series = append(series, tsb)
		legends = append(legends, string(sc.Scenario))
	}
	sections = append(sections, card("End of period", rows...))

	if r.Days > 1 && len(series) > 0 {
		graph := asciigraph.PlotMany(series,
			asciigraph.Height(chartHeight),
			asciigraph.Width(chartWidth),
			asciigraph.Precision(0),
			asciigraph.SeriesColors(asciigraph.Gray, asciigraph.Blue, asciigraph.Yellow, asciigraph.Red),
			asciigraph.SeriesLegends(legends...),
			asciigraph.Caption("TSB"),
		)
		sections = append(sections, card("Form by scenario", graph))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Batch renders a batch run summary
func Batch(r *service.BatchReport) string {
	status := successStyle.Render("ok")
	if r.Failed > 0 {
		status = warningStyle.Render(fmt.Sprintf("%d failed", r.Failed))
	}

	lines := []string{
		metric("Run", r.RunID, ""),
		metric("Took", r.Finished.Sub(r.Started).Round(time.Millisecond).String(), ""),
		metric("Status", status, ""),
	}
	for _, a := range r.Athletes {
		line := fmt.Sprintf("athlete %d: %d sessions synced", a.AthleteID, a.Synced)
		if a.Err != nil {
			line = errorStyle.Render(fmt.Sprintf("athlete %d: %v", a.AthleteID, a.Err))
		}
		lines = append(lines, line)
	}
	return card("Batch", lines...)
}
