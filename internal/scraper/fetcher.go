package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/qparser/internal/bypass"
	"github.com/FranksOps/qparser/internal/fingerprint"
	"github.com/FranksOps/qparser/internal/metrics"
	"github.com/FranksOps/qparser/pkg/httpclient"
	"github.com/FranksOps/qparser/pkg/proxy"
	"github.com/FranksOps/qparser/pkg/ratelimit"
	"github.com/FranksOps/qparser/pkg/useragent"
	"github.com/google/uuid"
)

const defaultMaxBody = 4 << 20

// Response is the outcome of a single GET.
type Response struct {
	ID           string
	URL          string
	StatusCode   int
	Headers      map[string][]string
	Body         []byte
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string // e.g. "Cloudflare", "Akamai", "DuckDuckGo"
	FetchedAt    time.Time
	Error        string // non-empty if the fetch failed before a full response was read
}

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// MaxBodyBytes caps how much of a response body is kept. Defaults to 4 MiB.
	MaxBodyBytes int64
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
}

// Fetcher performs single URL fetches with pacing, proxy and User-Agent
// rotation, TLS fingerprinting and bot-challenge detection.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a Fetcher. The underlying client lives as long as the
// Fetcher so connection pooling and cookies carry across requests.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxy.FromRequest)
	if err != nil {
		return nil, fmt.Errorf("scraper: transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
		UserAgents:   cfg.UAPool,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// Fetch executes a GET request to targetURL.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Response, error) {
	return f.FetchWithHeaders(ctx, targetURL, nil)
}

// FetchWithHeaders executes a GET request with extra headers. Transport
// failures are reported in Response.Error; the returned error is reserved for
// context cancellation so callers can tell the two apart.
func (f *Fetcher) FetchWithHeaders(ctx context.Context, targetURL string, header http.Header) (*Response, error) {
	res := &Response{
		ID:        uuid.New().String(),
		URL:       targetURL,
		FetchedAt: time.Now().UTC(),
	}

	if err := f.config.Limiter.Wait(ctx); err != nil {
		return res, fmt.Errorf("scraper: pacing: %w", err)
	}

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		metrics.RecordFetch(res.StatusCode, res.DetectionSrc)
	}()

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		ctx = proxy.WithURL(ctx, activeProxy)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		res.Error = fmt.Sprintf("failed to create request: %v", err)
		return res, nil
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		if ctx.Err() != nil {
			return res, fmt.Errorf("scraper: fetch %s: %w", targetURL, ctx.Err())
		}
		res.Error = fmt.Sprintf("request failed: %v", err)
		return res, nil
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		res.Error = fmt.Sprintf("failed to read body: %v", err)
	}

	res.StatusCode = resp.StatusCode
	res.Headers = resp.Header
	res.Body = body
	res.DetectedBot, res.DetectionSrc = bypass.Analyze(bypass.Page{
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
		Body:       res.Body,
	}, bypass.DefaultDetectors())

	return res, nil
}
