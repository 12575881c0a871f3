package enrich

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/qparser/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeOff, "off": ModeOff, "Gemini": ModeGemini, " probe ": ModeProbe} {
		got, ok := ParseMode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseMode("llama")
	assert.False(t, ok)
}

func TestFunc(t *testing.T) {
	var e Enricher = Func(func(ctx context.Context, query string, uris []string) (string, error) {
		return query + ":" + strings.Join(uris, ","), nil
	})
	out, err := e.Enrich(context.Background(), "q", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "q:a,b", out)
}

func TestGemini_Enrich(t *testing.T) {
	var prompt string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		prompt = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": " Both sites run nginx. "}]}}]}`))
	}))
	defer ts.Close()

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: ts.URL + "/"},
	})
	require.NoError(t, err)

	out, err := NewGemini(client, "").Enrich(context.Background(), "q", []string{"https://a.com", "https://b.com"})
	require.NoError(t, err)
	assert.Equal(t, "Both sites run nginx.", out)
	assert.Contains(t, prompt, "Analyze tech stack from URLs: https://a.com")
}

func TestGemini_NoURLs(t *testing.T) {
	_, err := NewGemini(nil, "").Enrich(context.Background(), "q", nil)
	assert.Error(t, err)
}

func newProbeFetcher(t *testing.T) *scraper.Fetcher {
	t.Helper()
	f, err := scraper.NewFetcher(scraper.FetchConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return f
}

func TestProbe_Enrich(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\nSitemap: http://example.com/sitemap.xml\n"))
	})
	mux.HandleFunc("/wp", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx")
		w.Header().Set("X-Powered-By", "PHP/8.2")
		_, _ = w.Write([]byte(`<html><head><meta name="generator" content="WordPress 6.5"></head></html>`))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx")
	})
	mux.HandleFunc("/blocked", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("disallowed path was fetched")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p := NewProbe(newProbeFetcher(t), ProbeConfig{Concurrency: 2}, nil)
	out, err := p.Enrich(context.Background(), "wp sites", []string{
		ts.URL + "/wp", ts.URL + "/plain", ts.URL + "/blocked", ts.URL + "/private",
	})
	require.NoError(t, err)

	assert.Contains(t, out, `Probe of 4 URLs for "wp sites"`)
	assert.Contains(t, out, ts.URL+"/wp: 200, server=nginx, powered-by=PHP/8.2, generator=WordPress 6.5, sitemaps=1")
	assert.Contains(t, out, ts.URL+"/blocked: 403, server=cloudflare, Cloudflare challenge, sitemaps=1")
	assert.Contains(t, out, ts.URL+"/private: disallowed by robots.txt")
	assert.Contains(t, out, "Technologies: nginx (2), PHP/8.2 (1), WordPress 6.5 (1), cloudflare (1)")
}

func TestProbe_QueryTerms(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Index of /</title><script>var dump = 1;</script></head>
<body><h1>Index of /backup</h1><a href="db.sql">db.sql</a> full dump, dump two. password hashes</body></html>`))
	}))
	defer ts.Close()

	p := NewProbe(newProbeFetcher(t), ProbeConfig{IgnoreRobots: true}, nil)
	out, err := p.Enrich(context.Background(), `filetype:sql "dump" password`, []string{ts.URL + "/"})
	require.NoError(t, err)
	assert.Contains(t, out, ts.URL+"/: 200, terms=dump:2 password:1")
}

func TestProbe_NothingReachable(t *testing.T) {
	p := NewProbe(newProbeFetcher(t), ProbeConfig{IgnoreRobots: true}, nil)
	_, err := p.Enrich(context.Background(), "q", []string{"http://127.0.0.1:1/x"})
	assert.True(t, errors.Is(err, ErrNothingReachable), "got %v", err)
}
