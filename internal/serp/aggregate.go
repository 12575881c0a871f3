package serp

import (
	"sort"

	"github.com/FranksOps/qparser/internal/session"
)

const (
	defaultTitle   = "Extracted URL"
	defaultSnippet = "Direct Extraction"
)

// Aggregate deduplicates items by normalized URL, keeping the first-seen
// title, and tallies results per domain. Results keep discovery order; stats
// are sorted by count descending with ties in first-seen domain order.
func Aggregate(items []RawItem) ([]session.Result, []session.DomainStat) {
	results := make([]session.Result, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	counts := make(map[string]int)
	var domains []string

	for _, it := range items {
		if it.URL == "" {
			continue
		}
		uri := Normalize(it.URL)
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}

		domain := DomainOf(uri)
		if _, ok := counts[domain]; !ok {
			domains = append(domains, domain)
		}
		counts[domain]++

		r := session.Result{Title: it.Title, URI: uri, Domain: domain, Snippet: it.Snippet}
		if r.Title == "" {
			r.Title = defaultTitle
		}
		if r.Snippet == "" {
			r.Snippet = defaultSnippet
		}
		results = append(results, r)
	}

	stats := make([]session.DomainStat, 0, len(domains))
	for _, d := range domains {
		stats = append(stats, session.DomainStat{Domain: d, Count: counts[d]})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })

	return results, stats
}
