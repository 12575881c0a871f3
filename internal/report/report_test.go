package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/qparser/internal/harvester"
	"github.com/FranksOps/qparser/internal/session"
)

func sampleOutcome() *harvester.Outcome {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return &harvester.Outcome{
		Total:     3,
		Completed: 3,
		Retried:   1,
		Sessions: []*session.Session{
			{
				ID:    "QP-1-aaaaaaaa",
				Query: "first",
				Results: []session.Result{
					{URI: "https://a.com/1", Domain: "a.com"},
					{URI: "https://a.com/2", Domain: "a.com"},
					{URI: "https://b.com/", Domain: "b.com"},
				},
				DomainStats: []session.DomainStat{{Domain: "a.com", Count: 2}, {Domain: "b.com", Count: 1}},
				Analysis:    "nginx",
			},
			{
				ID:          "QP-2-bbbbbbbb",
				Query:       "<script>second</script>",
				Results:     []session.Result{{URI: "https://b.com/x", Domain: "b.com"}},
				DomainStats: []session.DomainStat{{Domain: "b.com", Count: 1}},
			},
		},
		Skipped:    []harvester.Skip{{Query: "hot", Err: errors.New("quota exceeded")}},
		StartedAt:  now,
		FinishedAt: now.Add(4 * time.Second),
	}
}

func TestGenerateSummary(t *testing.T) {
	summary := GenerateSummary(sampleOutcome(), nil)

	if summary.Total != 3 || summary.Completed != 3 {
		t.Errorf("expected 3/3 completed, got %d/%d", summary.Completed, summary.Total)
	}
	if summary.Succeeded != 2 {
		t.Errorf("expected 2 succeeded, got %d", summary.Succeeded)
	}
	if summary.TotalResults != 4 {
		t.Errorf("expected 4 results, got %d", summary.TotalResults)
	}
	if summary.Duration != 4*time.Second {
		t.Errorf("expected 4s duration, got %v", summary.Duration)
	}

	// a.com:2, b.com:2 ties break by name
	if len(summary.Domains) != 2 || summary.Domains[0].Domain != "a.com" || summary.Domains[1].Count != 2 {
		t.Errorf("unexpected domain totals: %+v", summary.Domains)
	}
	if !summary.Sessions[0].Analyzed || summary.Sessions[1].Analyzed {
		t.Errorf("unexpected analysis flags: %+v", summary.Sessions)
	}
	if summary.Sessions[0].TopDomain != "a.com" {
		t.Errorf("expected top domain a.com, got %s", summary.Sessions[0].TopDomain)
	}
	if len(summary.Skipped) != 1 || summary.Skipped[0].Error != "quota exceeded" {
		t.Errorf("unexpected skipped rows: %+v", summary.Skipped)
	}
}

func TestGenerateSummary_Nil(t *testing.T) {
	summary := GenerateSummary(nil, nil)
	if summary.Total != 0 || summary.Domains == nil {
		t.Errorf("expected empty, non-nil summary, got %+v", summary)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, GenerateSummary(sampleOutcome(), nil)); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"QParser Batch Summary",
		"3/3 completed, 2 succeeded, 1 skipped, 1 retried",
		"a.com: 2",
		"hot: quota exceeded",
		"[analyzed]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in text report:\n%s", want, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, GenerateSummary(sampleOutcome(), nil)); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	var decoded Summary
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded.TotalResults != 4 || len(decoded.Sessions) != 2 {
		t.Errorf("unexpected decoded summary: %+v", decoded)
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, GenerateSummary(sampleOutcome(), nil)); err != nil {
		t.Fatalf("WriteHTML failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<title>QParser Batch Report</title>") {
		t.Errorf("missing title")
	}
	if strings.Contains(out, "<script>second</script>") {
		t.Errorf("query text was not escaped")
	}
	if !strings.Contains(out, "&lt;script&gt;second&lt;/script&gt;") {
		t.Errorf("expected escaped query in html report")
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, "pdf", Summary{}); err == nil {
		t.Errorf("expected error for unknown format")
	}
}
