package tui

import (
	"math"
	"time"

	tslc "github.com/NimbleMarkets/ntcharts/linechart/timeserieslinechart"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/smartstock/internal/api"
)

const forecastChartHeight = 10

// forecastChart plots the predicted units per day. It returns "" when the
// series is too short or has unparseable dates.
func forecastChart(fc api.ForecastResult, width int) string {
	if len(fc.Forecast) < 2 {
		return ""
	}
	dates := make([]time.Time, 0, len(fc.Forecast))
	maxVal := 0.0
	for _, p := range fc.Forecast {
		d, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return ""
		}
		dates = append(dates, d)
		maxVal = math.Max(maxVal, math.Max(p.Pred, p.Upper))
	}
	if maxVal <= 0 {
		maxVal = 1
	}
	w := width
	if w < 30 {
		w = 30
	}
	if w > 80 {
		w = 80
	}

	chart := tslc.New(w, forecastChartHeight)
	chart.SetXStep(1)
	chart.SetYStep(2)
	chart.SetStyle(lipgloss.NewStyle().Foreground(colorAccent))
	chart.AxisStyle = lipgloss.NewStyle().Foreground(colorBorder)
	chart.LabelStyle = lipgloss.NewStyle().Foreground(colorMuted)
	chart.SetTimeRange(dates[0], dates[len(dates)-1])
	chart.SetViewTimeRange(dates[0], dates[len(dates)-1])
	chart.SetYRange(0, maxVal*1.1)
	chart.SetViewYRange(0, maxVal*1.1)
	for i, p := range fc.Forecast {
		chart.Push(tslc.TimePoint{Time: dates[i], Value: p.Pred})
	}
	chart.DrawBraille()
	return chart.View()
}
