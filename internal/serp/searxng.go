package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/FranksOps/qparser/internal/scraper"
)

// SearXNG queries a SearXNG instance through its JSON API.
type SearXNG struct {
	baseURL string
	fetcher *scraper.Fetcher
}

var _ Provider = (*SearXNG)(nil)

// NewSearXNG returns a provider for the instance at baseURL.
func NewSearXNG(baseURL string, fetcher *scraper.Fetcher) (*SearXNG, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("serp: searxng: invalid base url %q", baseURL)
	}
	return &SearXNG{baseURL: u.String(), fetcher: fetcher}, nil
}

func (s *SearXNG) Name() string { return "searxng" }

type searxngResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs query against the instance.
func (s *SearXNG) Search(ctx context.Context, query string) ([]RawItem, error) {
	target := s.baseURL + "/search?" + url.Values{"q": {query}, "format": {"json"}}.Encode()

	res, err := s.fetcher.FetchWithHeaders(ctx, target, http.Header{"Accept": {"application/json"}})
	if err != nil {
		return nil, fmt.Errorf("serp: searxng: %w", err)
	}
	if res.Error != "" {
		return nil, &FetchError{Provider: s.Name(), Reason: res.Error}
	}
	if res.DetectedBot || res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{Provider: s.Name(), StatusCode: res.StatusCode, Challenge: res.DetectionSrc}
	}

	var body searxngResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, fmt.Errorf("serp: searxng: decode response: %w", err)
	}

	items := make([]RawItem, 0, len(body.Results))
	for _, r := range body.Results {
		items = append(items, RawItem{URL: r.URL, Title: r.Title, Snippet: r.Content})
	}
	return items, nil
}
