package serp

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/FranksOps/qparser/internal/scraper"
	"github.com/PuerkitoBio/goquery"
)

// DefaultDuckDuckGoURL is the HTML-only endpoint scraped by DuckDuckGo.
const DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the DuckDuckGo HTML results page.
type DuckDuckGo struct {
	endpoint string
	fetcher  *scraper.Fetcher
}

var _ Provider = (*DuckDuckGo)(nil)

// NewDuckDuckGo returns a provider. An empty endpoint selects DefaultDuckDuckGoURL.
func NewDuckDuckGo(endpoint string, fetcher *scraper.Fetcher) *DuckDuckGo {
	if endpoint == "" {
		endpoint = DefaultDuckDuckGoURL
	}
	return &DuckDuckGo{endpoint: endpoint, fetcher: fetcher}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search fetches and parses the first results page for query.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]RawItem, error) {
	target := d.endpoint + "?" + url.Values{"q": {query}}.Encode()

	res, err := d.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("serp: duckduckgo: %w", err)
	}
	if res.Error != "" {
		return nil, &FetchError{Provider: d.Name(), Reason: res.Error}
	}
	if res.DetectedBot || res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{Provider: d.Name(), StatusCode: res.StatusCode, Challenge: res.DetectionSrc}
	}

	return parseDuckDuckGo(res.Body)
}

func parseDuckDuckGo(body []byte) ([]RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("serp: duckduckgo: parse html: %w", err)
	}

	var items []RawItem
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		items = append(items, RawItem{
			URL:     resolveDuckDuckGoHref(href),
			Title:   strings.TrimSpace(link.Text()),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
	})
	return items, nil
}

// resolveDuckDuckGoHref unwraps the /l/?uddg= redirect links on result pages.
func resolveDuckDuckGoHref(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
