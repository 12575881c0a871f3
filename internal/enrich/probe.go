package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/FranksOps/qparser/internal/analyzer"
	"github.com/FranksOps/qparser/internal/scraper"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// ErrNothingReachable is returned when no probed URL produced a response.
var ErrNothingReachable = errors.New("enrich: probe: no reachable urls")

// ProbeConfig configures a Probe.
type ProbeConfig struct {
	// Concurrency bounds parallel fetches per Enrich call. Defaults to 4.
	Concurrency int
	// UserAgent is matched against robots.txt groups. Defaults to "qparser".
	UserAgent string
	// IgnoreRobots skips the robots.txt check.
	IgnoreRobots bool
}

// Probe fetches each result URL directly and summarizes status codes,
// server software, bot protection and generator hints.
type Probe struct {
	fetcher *scraper.Fetcher
	robots  *scraper.RobotsTxtAuditor
	cfg     ProbeConfig
	logger  *slog.Logger
}

var _ Enricher = (*Probe)(nil)

// NewProbe returns a probe enricher using fetcher for all requests.
func NewProbe(fetcher *scraper.Fetcher, cfg ProbeConfig, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "qparser"
	}
	return &Probe{
		fetcher: fetcher,
		robots:  scraper.NewRobotsTxtAuditor(fetcher, logger),
		cfg:     cfg,
		logger:  logger,
	}
}

type probeResult struct {
	uri       string
	status    int
	server    string
	poweredBy string
	generator string
	challenge string
	sitemaps  int
	matches   []analyzer.TermMatch
	skipped   string
}

func (p *Probe) Enrich(ctx context.Context, query string, uris []string) (string, error) {
	results := make([]probeResult, len(uris))
	terms := analyzer.QueryTerms(query)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, u := range uris {
		g.Go(func() error {
			results[i] = p.probe(gctx, u, terms)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("enrich: probe: %w", err)
	}

	reached := 0
	for _, r := range results {
		if r.status != 0 {
			reached++
		}
	}
	if reached == 0 {
		return "", ErrNothingReachable
	}
	return summarize(query, results), nil
}

func (p *Probe) probe(ctx context.Context, uri string, terms []string) probeResult {
	r := probeResult{uri: uri}

	if !p.cfg.IgnoreRobots {
		allowed, err := p.robots.IsAllowed(ctx, uri, p.cfg.UserAgent)
		if err != nil {
			r.skipped = "invalid url"
			return r
		}
		if !allowed {
			r.skipped = "disallowed by robots.txt"
			return r
		}
	}

	res, err := p.fetcher.Fetch(ctx, uri)
	if err != nil || res.Error != "" {
		r.skipped = "unreachable"
		p.logger.Debug("probe fetch failed", "url", uri, "err", err, "fetch_err", res.Error)
		return r
	}

	r.status = res.StatusCode
	r.server = firstHeader(res.Headers, "Server")
	r.poweredBy = firstHeader(res.Headers, "X-Powered-By")
	r.challenge = res.DetectionSrc
	var text string
	r.generator, text = inspectPage(res.Body)
	r.matches = analyzer.FindTermMatches(text, terms, 0)
	if u, err := url.Parse(uri); err == nil && !p.cfg.IgnoreRobots {
		r.sitemaps = len(p.robots.Sitemaps(ctx, u.Scheme+"://"+u.Host))
	}
	return r
}

func firstHeader(h map[string][]string, key string) string {
	for k, v := range h {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// inspectPage returns the generator meta tag and the visible text of an HTML body.
func inspectPage(body []byte) (generator, text string) {
	if len(body) == 0 {
		return "", ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}
	gen, _ := doc.Find(`meta[name="generator"]`).First().Attr("content")
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(gen), doc.Find("body").Text()
}

func summarize(query string, results []probeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Probe of %d URLs for %q:\n", len(results), query)

	tally := map[string]int{}
	for _, r := range results {
		if r.skipped != "" {
			fmt.Fprintf(&b, "- %s: %s\n", r.uri, r.skipped)
			continue
		}
		parts := []string{fmt.Sprintf("%d", r.status)}
		for _, kv := range [][2]string{{"server", r.server}, {"powered-by", r.poweredBy}, {"generator", r.generator}} {
			if kv[1] != "" {
				parts = append(parts, kv[0]+"="+kv[1])
				tally[kv[1]]++
			}
		}
		if r.challenge != "" {
			parts = append(parts, r.challenge+" challenge")
		}
		if r.sitemaps > 0 {
			parts = append(parts, fmt.Sprintf("sitemaps=%d", r.sitemaps))
		}
		if len(r.matches) > 0 {
			hits := make([]string, len(r.matches))
			for i, m := range r.matches {
				hits[i] = fmt.Sprintf("%s:%d", m.Term, m.Count)
			}
			parts = append(parts, "terms="+strings.Join(hits, " "))
		}
		fmt.Fprintf(&b, "- %s: %s\n", r.uri, strings.Join(parts, ", "))
	}

	if len(tally) > 0 {
		techs := make([]string, 0, len(tally))
		for t := range tally {
			techs = append(techs, t)
		}
		sort.Slice(techs, func(i, j int) bool {
			if tally[techs[i]] != tally[techs[j]] {
				return tally[techs[i]] > tally[techs[j]]
			}
			return techs[i] < techs[j]
		})
		parts := make([]string, len(techs))
		for i, t := range techs {
			parts[i] = fmt.Sprintf("%s (%d)", t, tally[t])
		}
		fmt.Fprintf(&b, "Technologies: %s\n", strings.Join(parts, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
