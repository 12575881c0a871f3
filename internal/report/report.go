package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"sort"
	"text/template"
	"time"

	"github.com/FranksOps/qparser/internal/harvester"
	"github.com/FranksOps/qparser/internal/session"
)

// SessionRow is the per-query line of a report.
type SessionRow struct {
	ID        string `json:"id"`
	Query     string `json:"query"`
	Results   int    `json:"results"`
	TopDomain string `json:"top_domain,omitempty"`
	Analyzed  bool   `json:"analyzed"`
}

// SkipRow is a query that failed permanently.
type SkipRow struct {
	Query string `json:"query"`
	Error string `json:"error"`
}

// Summary contains aggregated figures about a batch run.
type Summary struct {
	Total        int                  `json:"total"`
	Completed    int                  `json:"completed"`
	Succeeded    int                  `json:"succeeded"`
	Retried      int                  `json:"retried"`
	TotalResults int                  `json:"total_results"`
	Domains      []session.DomainStat `json:"domains"`
	Sessions     []SessionRow         `json:"sessions"`
	Skipped      []SkipRow            `json:"skipped"`
	Pending      []string             `json:"pending,omitempty"`
	StartTime    time.Time            `json:"start_time"`
	EndTime      time.Time            `json:"end_time"`
	Duration     time.Duration        `json:"duration"`
}

// GenerateSummary folds a batch outcome into a Summary. Sessions carry the
// latest analysis state when taken from the session store instead of the
// outcome, so callers may pass either.
func GenerateSummary(out *harvester.Outcome, sessions []*session.Session) Summary {
	s := Summary{
		Domains:  []session.DomainStat{},
		Sessions: []SessionRow{},
		Skipped:  []SkipRow{},
	}
	if out == nil {
		return s
	}
	if sessions == nil {
		sessions = out.Sessions
	}

	s.Total = out.Total
	s.Completed = out.Completed
	s.Retried = out.Retried
	s.Pending = out.Pending
	s.StartTime = out.StartedAt
	s.EndTime = out.FinishedAt
	s.Duration = out.FinishedAt.Sub(out.StartedAt)

	counts := make(map[string]int)
	for _, sess := range sessions {
		s.Succeeded++
		s.TotalResults += len(sess.Results)
		row := SessionRow{
			ID:       sess.ID,
			Query:    sess.Query,
			Results:  len(sess.Results),
			Analyzed: sess.Analysis != "",
		}
		if len(sess.DomainStats) > 0 {
			row.TopDomain = sess.DomainStats[0].Domain
		}
		s.Sessions = append(s.Sessions, row)
		for _, st := range sess.DomainStats {
			counts[st.Domain] += st.Count
		}
	}

	for d, c := range counts {
		s.Domains = append(s.Domains, session.DomainStat{Domain: d, Count: c})
	}
	sort.Slice(s.Domains, func(i, j int) bool {
		if s.Domains[i].Count != s.Domains[j].Count {
			return s.Domains[i].Count > s.Domains[j].Count
		}
		return s.Domains[i].Domain < s.Domains[j].Domain
	})

	for _, sk := range out.Skipped {
		msg := ""
		if sk.Err != nil {
			msg = sk.Err.Error()
		}
		s.Skipped = append(s.Skipped, SkipRow{Query: sk.Query, Error: msg})
	}
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	return nil
}

const textTmpl = `QParser Batch Summary
---------------------
Time:       {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:   {{.Duration}}
Queries:    {{.Completed}}/{{.Total}} completed, {{.Succeeded}} succeeded, {{len .Skipped}} skipped, {{.Retried}} retried
Results:    {{.TotalResults}}
{{- if .Pending}}
Pending:    {{len .Pending}} (cancelled)
{{- end}}

Sessions:
{{- range .Sessions}}
  {{.ID}}  {{printf "%3d" .Results}}  {{.Query}}{{if .Analyzed}}  [analyzed]{{end}}
{{- else}}
  None
{{- end}}

Top Domains:
{{- range .Domains}}
  {{.Domain}}: {{.Count}}
{{- else}}
  None
{{- end}}

Skipped:
{{- range .Skipped}}
  {{.Query}}: {{.Error}}
{{- else}}
  None
{{- end}}
`

var textReport = template.Must(template.New("textReport").Parse(textTmpl))

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	if err := textReport.Execute(w, summary); err != nil {
		return fmt.Errorf("report: text: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>QParser Batch Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>QParser Batch Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Queries</div>
    <div class="stat-val">{{.Completed}}/{{.Total}}</div>
  </div>
  <div class="stat-card">
    <div>Results</div>
    <div class="stat-val">{{.TotalResults}}</div>
  </div>
  <div class="stat-card">
    <div>Skipped</div>
    <div class="stat-val" style="color: {{if .Skipped}}red{{else}}green{{end}};">{{len .Skipped}}</div>
  </div>
  <div class="stat-card">
    <div>Retried</div>
    <div class="stat-val">{{.Retried}}</div>
  </div>

  <h3>Sessions</h3>
  <table>
    <tr><th>ID</th><th>Query</th><th>Results</th><th>Top Domain</th><th>Analysis</th></tr>
    {{- range .Sessions}}
    <tr><td>{{.ID}}</td><td>{{.Query}}</td><td>{{.Results}}</td><td>{{.TopDomain}}</td><td>{{if .Analyzed}}yes{{else}}no{{end}}</td></tr>
    {{- else}}
    <tr><td colspan="5">None</td></tr>
    {{- end}}
  </table>

  <h3>Top Domains</h3>
  <table>
    <tr><th>Domain</th><th>Count</th></tr>
    {{- range .Domains}}
    <tr><td>{{.Domain}}</td><td>{{.Count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Skipped Queries</h3>
  <table>
    <tr><th>Query</th><th>Error</th></tr>
    {{- range .Skipped}}
    <tr><td>{{.Query}}</td><td>{{.Error}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// query text is user supplied, hence html/template.
var htmlReport = htmltemplate.Must(htmltemplate.New("htmlReport").Parse(htmlTmpl))

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	if err := htmlReport.Execute(w, summary); err != nil {
		return fmt.Errorf("report: html: %w", err)
	}
	return nil
}

// Write renders summary in the named format: text, json or html.
func Write(w io.Writer, format string, summary Summary) error {
	switch format {
	case "", "text", "txt":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "html":
		return WriteHTML(w, summary)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}
