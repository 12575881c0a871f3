package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsTxtAuditor fetches and caches robots.txt per origin.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotstxt.RobotsData
}

// NewRobotsTxtAuditor creates a new instance.
func NewRobotsTxtAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether targetURL may be fetched by userAgent. A missing
// or unreachable robots.txt allows everything.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" {
		return false, fmt.Errorf("scraper: invalid url %q", targetURL)
	}

	origin := u.Scheme + "://" + u.Host
	data, err := r.getOrFetch(ctx, origin)
	if err != nil {
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "host", origin, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.FindGroup(userAgent).Test(path), nil
}

// Sitemaps returns the sitemap URLs declared in host's robots.txt.
func (r *RobotsTxtAuditor) Sitemaps(ctx context.Context, host string) []string {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	data, err := r.getOrFetch(ctx, strings.TrimSuffix(host, "/"))
	if err != nil || data == nil {
		return nil
	}
	return data.Sitemaps
}

func (r *RobotsTxtAuditor) getOrFetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.cache[origin]; ok {
		return data, nil
	}

	res, err := r.fetcher.Fetch(ctx, origin+"/robots.txt")
	if err != nil {
		// cancellation is not cached
		return nil, err
	}
	if res.Error != "" {
		r.cache[origin] = nil
		return nil, fmt.Errorf("fetch error: %s", res.Error)
	}
	if res.StatusCode >= 400 {
		r.cache[origin] = nil
		return nil, nil
	}

	parsed, err := robotstxt.FromBytes(res.Body)
	if err != nil {
		r.cache[origin] = nil
		return nil, fmt.Errorf("parse error: %w", err)
	}

	r.cache[origin] = parsed
	return parsed, nil
}
