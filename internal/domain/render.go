package domain

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// weekdayLayout renders e.g. "Sunday, March 09".
const weekdayLayout = "Monday, January 02"

// Renderer formats analyzed forecast days into HTML report bodies.
type Renderer struct {
	daily  *template.Template
	weekly *template.Template
}

// NewRenderer parses the embedded templates. Weekly day headings are formatted
// in loc; nil means time.Local.
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	funcs := template.FuncMap{
		"number":  formatNumber,
		"percent": formatPercent,
		"date":    func(t time.Time) string { return t.In(loc).Format(weekdayLayout) },
	}
	return &Renderer{
		daily:  template.Must(template.New("daily.html").Funcs(funcs).ParseFS(templateFS, "templates/daily.html")),
		weekly: template.Must(template.New("weekly.html").Funcs(funcs).ParseFS(templateFS, "templates/weekly.html")),
	}
}

// RenderDaily builds tomorrow's report. An empty precaution list still renders
// the (empty) list block.
func (r *Renderer) RenderDaily(to, location string, tomorrow ForecastDay, precautions []Precaution) Report {
	body := execute(r.daily, struct {
		Location    string
		Day         ForecastDay
		Precautions []Precaution
	}{location, tomorrow, precautions})

	return Report{
		Kind:    ReportDaily,
		To:      to,
		Subject: "Daily Weather Update for " + location,
		Body:    body,
	}
}

// RenderWeekly builds the weekly summary from at most seven analyzed days;
// extra days are ignored.
func (r *Renderer) RenderWeekly(to, location string, days []AnalyzedDay) Report {
	if len(days) > 7 {
		days = days[:7]
	}
	body := execute(r.weekly, struct {
		Location string
		Days     []AnalyzedDay
	}{location, days})

	return Report{
		Kind:    ReportWeekly,
		To:      to,
		Subject: "Weekly Weather Summary for " + location,
		Body:    body,
	}
}

// execute panics on failure; the templates are embedded and the data types are
// fixed.
func execute(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		panic("render " + t.Name() + ": " + err.Error())
	}
	return buf.String()
}

// formatNumber prints the shortest representation that round-trips. Whole
// values keep a trailing ".0" so 72 renders as "72.0".
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// formatPercent multiplies the fraction by 100 without rounding.
func formatPercent(pop float64) string {
	return formatNumber(pop * 100)
}
