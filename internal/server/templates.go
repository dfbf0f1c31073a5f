package server

import (
	"fmt"
	"html/template"
	"net/http"

	"earnings-scanner/internal/types"
)

var templateFuncs = template.FuncMap{
	"pct":       formatPct,
	"emoji":     func(s types.Signal) string { return s.Emoji() },
	"sentiment": func(s types.Signal) string { return s.SentimentEmoji() },
}

func formatPct(v float64) string {
	sign := ""
	if v > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, v)
}

var reportTemplate = template.Must(template.New("report").Funcs(templateFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Universe.Name}} Earnings Report</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 2rem; color: #1a1a2e; }
table { border-collapse: collapse; margin-bottom: 2rem; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: left; }
th { background: #f0f0f5; }
.drop { color: #c0392b; }
.gain { color: #27ae60; }
.meta { color: #666; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>{{.Universe.Name}} Earnings Report</h1>
<p class="meta">Generated {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>

<h2>{{.Universe.LosersTitle}}</h2>
{{if .Losers}}
<table>
<tr><th>Ticker</th><th>Company</th><th>Earnings</th><th>Before</th><th>Now</th><th>Change</th></tr>
{{range .Losers}}
<tr><td>{{.Ticker}}</td><td>{{.Name}}</td><td>{{.EarningsDate.Format "Jan 2"}}</td><td>{{printf "%.2f" .PriceBeforeEarnings}}</td><td>{{printf "%.2f" .PriceNow}}</td><td class="drop">{{pct .ChangePercent}}</td></tr>
{{end}}
</table>
{{else}}<p>No drops in the window.</p>{{end}}

<h2>{{.Universe.GainersTitle}}</h2>
{{if .Gainers}}
<table>
<tr><th>Ticker</th><th>Company</th><th>Earnings</th><th>Before</th><th>Now</th><th>Change</th></tr>
{{range .Gainers}}
<tr><td>{{.Ticker}}</td><td>{{.Name}}</td><td>{{.EarningsDate.Format "Jan 2"}}</td><td>{{printf "%.2f" .PriceBeforeEarnings}}</td><td>{{printf "%.2f" .PriceNow}}</td><td class="gain">{{pct .ChangePercent}}</td></tr>
{{end}}
</table>
{{else}}<p>No gains in the window.</p>{{end}}

<h2>{{.Universe.UpcomingTitle}}</h2>
{{if .Upcoming}}
<table>
<tr><th>Ticker</th><th>Company</th><th>Date</th></tr>
{{range .Upcoming}}
<tr><td>{{.Ticker}}</td><td>{{.Name}}</td><td>{{.Date.Format "Jan 2"}}</td></tr>
{{end}}
</table>
{{else}}<p>No upcoming earnings found.</p>{{end}}

{{if .Opportunities}}
<h2>Buy Opportunities</h2>
<table>
<tr><th>Ticker</th><th>Change</th><th>Insider</th><th>Valuation</th><th>Analysts</th><th>Met</th><th>Recommendation</th></tr>
{{range .Opportunities}}
<tr>
<td>{{.Candidate.Ticker}}</td>
<td class="drop">{{pct .Candidate.ChangePercent}}</td>
<td>{{emoji .Insider.Signal}}</td>
<td>{{if .Valuation.IsUndervalued}}🟢{{else}}⚪{{end}}</td>
<td>{{sentiment .Analysts.Sentiment}}</td>
<td>{{.CriteriaMetCount}}/4</td>
<td>{{.Recommendation}}</td>
</tr>
{{end}}
</table>
{{end}}

<p class="meta">Scanned {{len .Candidates}} reporters.
Discards: {{.Discards.InvalidDate}} invalid date, {{.Discards.NoQuote}} no quote, {{.Discards.NoMarketCap}} no market cap,
{{.Discards.BelowFloor}} below floor, {{.Discards.NoHistory}} no history,
{{.Discards.NoPriceBefore}} no pre-earnings close.</p>
</body>
</html>
`))

var buyTemplate = template.Must(template.New("buy").Funcs(templateFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Universe.Name}} Buy Opportunities</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 2rem; color: #1a1a2e; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: left; }
th { background: #f0f0f5; }
.drop { color: #c0392b; }
</style>
</head>
<body>
<h1>{{.Universe.Name}} Buy Opportunities</h1>
{{if .Opportunities}}
<table>
<tr><th>Ticker</th><th>Change</th><th>Insider</th><th>Valuation</th><th>Analysts</th><th>Met</th><th>Recommendation</th></tr>
{{range .Opportunities}}
<tr>
<td>{{.Candidate.Ticker}}</td>
<td class="drop">{{pct .Candidate.ChangePercent}}</td>
<td>{{emoji .Insider.Signal}}</td>
<td>{{if .Valuation.IsUndervalued}}🟢{{else}}⚪{{end}}</td>
<td>{{sentiment .Analysts.Sentiment}}</td>
<td>{{.CriteriaMetCount}}/4</td>
<td>{{.Recommendation}}</td>
</tr>
{{end}}
</table>
{{else}}<p>No qualifying droppers.</p>{{end}}
</body>
</html>
`))

func renderReport(w http.ResponseWriter, payload reportPayload) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := reportTemplate.Execute(w, payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func renderBuyOpportunities(w http.ResponseWriter, u types.Universe, opportunities []types.BuyOpportunity) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Universe      types.Universe
		Opportunities []types.BuyOpportunity
	}{Universe: u, Opportunities: opportunities}
	if err := buyTemplate.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
