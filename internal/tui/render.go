package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/smartstock/internal/api"
	"github.com/kingrea/smartstock/internal/dashboard"
	"github.com/kingrea/smartstock/internal/view"
)

var (
	colorAccent = lipgloss.Color("#5B8DEF")
	colorBorder = lipgloss.Color("#444444")
	colorMuted  = lipgloss.Color("#888888")
	colorText   = lipgloss.Color("#AAAAAA")
	colorBrand  = lipgloss.Color("#FF6B6B")
	colorOK     = lipgloss.Color("#5BD67A")

	colorRed           = lipgloss.Color("#FF0000")
	colorOrange        = lipgloss.Color("#FFA500")
	colorDarkGoldenrod = lipgloss.Color("#B8860B")
)

// alertColor maps an alert type to its display colour. Unknown types keep
// the terminal's default foreground.
func alertColor(t api.AlertType) lipgloss.TerminalColor {
	switch t {
	case api.AlertOutOfStock:
		return colorRed
	case api.AlertLowStock:
		return colorOrange
	case api.AlertExpirySoon:
		return colorDarkGoldenrod
	}
	return lipgloss.NoColor{}
}

// alertLine renders one alert. Optional fragments appear only when present.
func alertLine(a api.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s → %s", strings.ToUpper(string(a.Type)), a.Product)
	if a.BatchID != nil && *a.BatchID != "" {
		fmt.Fprintf(&b, " (Batch %s)", *a.BatchID)
	}
	if a.StockLeft != nil {
		fmt.Fprintf(&b, " (%s left)", formatNumber(*a.StockLeft))
	}
	if a.DaysLeft != nil {
		fmt.Fprintf(&b, " (expires in %s days)", formatNumber(*a.DaysLeft))
	}
	return b.String()
}

func renderAlerts(alerts []api.Alert) string {
	if len(alerts) == 0 {
		return lipgloss.NewStyle().Foreground(colorMuted).Render("No alerts.")
	}
	lines := make([]string, 0, len(alerts))
	for _, a := range alerts {
		lines = append(lines, lipgloss.NewStyle().Foreground(alertColor(a.Type)).Render(alertLine(a)))
	}
	return strings.Join(lines, "\n")
}

// formatNumber prints integers without a decimal point and keeps the
// shortest exact form otherwise.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func inventoryColumns() []table.Column {
	return []table.Column{
		{Title: "Product", Width: 20},
		{Title: "Batch ID", Width: 12},
		{Title: "Stock Left", Width: 10},
		{Title: "Expiry Date", Width: 12},
	}
}

func inventoryRow(rec api.InventoryRecord) table.Row {
	return table.Row{rec.Product, orDash(rec.BatchID), formatNumber(rec.StockLeft), orDash(rec.ExpiryDate)}
}

func inventoryRows(records []api.InventoryRecord) []table.Row {
	rows := make([]table.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, inventoryRow(rec))
	}
	return rows
}

func forecastHeading(fc api.ForecastResult) string {
	return fmt.Sprintf("%s (next %d days)", fc.Product, fc.HorizonDays)
}

func forecastLine(p api.ForecastPoint) string {
	return fmt.Sprintf("%s: %.1f (range %.1f - %.1f)", p.Date, p.Pred, p.Lower, p.Upper)
}

func renderForecast(fc api.ForecastResult, width int) string {
	head := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render(forecastHeading(fc))
	lines := []string{head}
	for _, p := range fc.Forecast {
		lines = append(lines, "  "+forecastLine(p))
	}
	if chart := forecastChart(fc, width); chart != "" {
		lines = append(lines, "", chart)
	}
	return strings.Join(lines, "\n")
}

func renderRanking(title string, r api.Ranking) string {
	label := lipgloss.NewStyle().Bold(true)
	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render(title)}
	lines = append(lines, label.Render("Best Selling:"))
	for _, u := range r.Best {
		lines = append(lines, fmt.Sprintf("  %s: %s", u.Product, formatNumber(u.Units)))
	}
	lines = append(lines, label.Render("Least Selling:"))
	for _, u := range r.Least {
		lines = append(lines, fmt.Sprintf("  %s: %s", u.Product, formatNumber(u.Units)))
	}
	return strings.Join(lines, "\n")
}

func renderInsights(in api.InsightsResult) string {
	return strings.Join([]string{
		renderRanking("Daily", in.Daily),
		renderRanking("Weekly", in.Weekly),
		renderRanking("Monthly", in.Monthly),
	}, "\n\n")
}

func renderSearchResult(res api.SearchResult) string {
	if res.NotFound() {
		return lipgloss.NewStyle().Foreground(colorRed).Render(res.Error)
	}
	t := table.New(
		table.WithColumns(inventoryColumns()),
		table.WithRows([]table.Row{inventoryRow(*res.Record)}),
		table.WithHeight(2),
	)
	return t.View()
}

func renderTabs(active view.View) string {
	tabs := make([]string, 0, len(view.All))
	for i, v := range view.All {
		label := fmt.Sprintf(" %d %s ", i+1, v.Title())
		style := lipgloss.NewStyle().Foreground(colorText)
		if v == active {
			style = style.Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(colorAccent)
		}
		tabs = append(tabs, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func renderNotification(n *dashboard.Notification) string {
	if n == nil {
		return ""
	}
	color := colorText
	switch n.Level {
	case dashboard.LevelError:
		color = colorBrand
	case dashboard.LevelSuccess:
		color = colorOK
	}
	return lipgloss.NewStyle().Foreground(color).Render(n.Text)
}

func helpFor(v view.View) string {
	base := "1-5/tab switch · r refresh · ctrl+l logout · q quit"
	switch v {
	case view.Inventory:
		return "u upload inventory · s upload sales · " + base
	case view.Forecast:
		return "↑/↓ choose · enter forecast · " + base
	case view.Search:
		return "enter search · tab switch · ctrl+l logout · ctrl+c quit"
	}
	return base
}
