package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/qparser/internal/config"
	"github.com/FranksOps/qparser/internal/console"
	"github.com/FranksOps/qparser/internal/enrich"
	"github.com/FranksOps/qparser/internal/fingerprint"
	"github.com/FranksOps/qparser/internal/harvester"
	"github.com/FranksOps/qparser/internal/metrics"
	"github.com/FranksOps/qparser/internal/scraper"
	"github.com/FranksOps/qparser/internal/serp"
	"github.com/FranksOps/qparser/internal/session"
	"github.com/FranksOps/qparser/internal/storage"
	"github.com/FranksOps/qparser/internal/storage/csvbackend"
	"github.com/FranksOps/qparser/internal/storage/jsonbackend"
	"github.com/FranksOps/qparser/internal/storage/postgres"
	"github.com/FranksOps/qparser/internal/storage/sqlite"
	"github.com/FranksOps/qparser/internal/storage/txtbackend"
	"github.com/FranksOps/qparser/internal/storage/xlsxbackend"
	"github.com/FranksOps/qparser/pkg/httpclient"
	"github.com/FranksOps/qparser/pkg/proxy"
	"github.com/FranksOps/qparser/pkg/ratelimit"
	"github.com/FranksOps/qparser/pkg/retry"
	"github.com/FranksOps/qparser/pkg/useragent"
	"google.golang.org/genai"
)

// app holds everything a command needs for one run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	window  *console.Window
	store   *session.Store
	backend storage.Backend
	metrics *metrics.Server
	task    *harvester.Task
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, store: session.NewStore()}

	var err error
	a.logger, a.window, err = newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}

	if cfg.MetricsPort > 0 {
		a.metrics, err = metrics.Start(cfg.MetricsPort, a.logger)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	fetcher, err := newFetcher(cfg)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	var client *genai.Client
	mode, _ := enrich.ParseMode(cfg.Enrich.Mode)
	if cfg.Provider == "gemini" || mode == enrich.ModeGemini {
		client, err = newGeminiClient(ctx, cfg)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
	}

	provider, err := newProvider(cfg, fetcher, client)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	a.backend, err = newBackend(ctx, cfg.Export)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	var sink harvester.Sink = a.store
	if a.backend != nil {
		sink = harvester.MultiSink{a.store, &harvester.ExportSink{Backend: a.backend, Logger: a.logger}}
	}

	policy := retry.DefaultPolicy(serp.IsRecoverable)
	policy.MaxAttempts = cfg.Retry.MaxAttempts
	policy.InitialDelay = cfg.Retry.InitialDelay
	policy.Factor = cfg.Retry.Factor
	policy.MaxJitter = cfg.Retry.MaxJitter

	a.task = harvester.NewTask(harvester.TaskConfig{
		Provider:          provider,
		Enricher:          newEnricher(mode, cfg, fetcher, client, a.logger),
		Sink:              sink,
		Retry:             policy,
		Limiter:           ratelimit.NewLimiter(cfg.Pacing.RequestsPerSecond, cfg.Pacing.Jitter),
		CallTimeout:       cfg.CallTimeout,
		EnrichMaxURIs:     cfg.Enrich.MaxURIs,
		EnrichTimeout:     cfg.Enrich.Timeout,
		EnrichConcurrency: int64(cfg.Enrich.Concurrency),
	}, a.logger)

	a.logger.Debug("qparser ready", "provider", provider.Name(), "enrich", mode, "export", cfg.Export.Format)
	return a, nil
}

// finish waits for pending analyses, then releases the export backend and
// the metrics server.
func (a *app) finish(ctx context.Context) {
	if a.task != nil {
		if err := a.task.Wait(ctx); err != nil {
			a.logger.Debug("pending analyses abandoned", "err", err)
		}
	}
	a.close(context.WithoutCancel(ctx))
}

func (a *app) close(ctx context.Context) {
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Error("failed to close export", "err", err)
		}
		a.backend = nil
	}
	if a.metrics != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = a.metrics.Stop(stopCtx)
		a.metrics = nil
	}
}

func newLogger(cfg config.LogConfig, out io.Writer) (*slog.Logger, *console.Window, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if cfg.Format == "json" {
		inner = slog.NewJSONHandler(out, opts)
	} else {
		inner = slog.NewTextHandler(out, opts)
	}

	window := console.NewWindow(cfg.Window)
	return slog.New(console.NewHandler(inner, window, slog.LevelInfo)), window, nil
}

func newFetcher(cfg *config.Config) (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fetch.Fingerprint)
	if err != nil {
		return nil, err
	}

	var proxies *proxy.Pool
	if cfg.Fetch.ProxyFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.LoadFile(cfg.Fetch.ProxyFile); err != nil {
			return nil, fmt.Errorf("proxies: %w", err)
		}
	}

	return scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Fetch.Timeout,
		MaxRedirects: 10,
		UseCookieJar: true,
		ProxyPool:    proxies,
		UAPool:       useragent.NewPool(cfg.Fetch.UserAgents),
		Fingerprint:  profile,
	})
}

func newGeminiClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	hc, err := httpclient.New(httpclient.Config{Timeout: cfg.CallTimeout, MaxRedirects: 10})
	if err != nil {
		return nil, err
	}
	return serp.NewGeminiClient(ctx, serp.GeminiConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		HTTPClient: hc.Client,
	})
}

func newProvider(cfg *config.Config, fetcher *scraper.Fetcher, client *genai.Client) (serp.Provider, error) {
	switch cfg.Provider {
	case "gemini":
		return serp.NewGemini(client, cfg.Model), nil
	case "searxng":
		return serp.NewSearXNG(cfg.SearXNGURL, fetcher)
	case "duckduckgo":
		return serp.NewDuckDuckGo("", fetcher), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newEnricher(mode enrich.Mode, cfg *config.Config, fetcher *scraper.Fetcher, client *genai.Client, logger *slog.Logger) enrich.Enricher {
	switch mode {
	case enrich.ModeGemini:
		return enrich.NewGemini(client, cfg.Model)
	case enrich.ModeProbe:
		return enrich.NewProbe(fetcher, enrich.ProbeConfig{}, logger)
	default:
		return nil
	}
}

func newBackend(ctx context.Context, cfg config.ExportConfig) (storage.Backend, error) {
	format, err := storage.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	target := cfg.Path
	if target == "" {
		target = cfg.DSN
	}

	switch format {
	case storage.FormatNone:
		return nil, nil
	case storage.FormatTXT:
		return txtbackend.New(target)
	case storage.FormatCSV:
		return csvbackend.New(target)
	case storage.FormatNDJSON:
		return jsonbackend.New(target)
	case storage.FormatXLSX:
		return xlsxbackend.New(target)
	case storage.FormatSQLite:
		if cfg.DSN != "" {
			target = cfg.DSN
		}
		return sqlite.New(target)
	case storage.FormatPostgres:
		return postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// describeError separates quota exhaustion from other failures so the user
// knows whether waiting will help.
func describeError(err error) error {
	if serp.IsRecoverable(err) {
		return fmt.Errorf("API limit hit, wait and retry: %w", err)
	}
	return fmt.Errorf("search failed: %w", err)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
