// Package config loads qparser settings from defaults, an optional config
// file, QPARSER_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/FranksOps/qparser/internal/enrich"
	"github.com/FranksOps/qparser/internal/fingerprint"
	"github.com/FranksOps/qparser/internal/storage"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. QPARSER_RETRY_MAX_ATTEMPTS.
const EnvPrefix = "QPARSER"

// Providers lists the accepted search providers.
var Providers = []string{"gemini", "searxng", "duckduckgo"}

var (
	ErrMissingAPIKey = errors.New("config: gemini provider needs an api key (api_key, GEMINI_API_KEY or API_KEY)")
	ErrMissingTarget = errors.New("config: export format needs a path or dsn")
)

type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Factor       float64       `mapstructure:"factor"`
	MaxJitter    time.Duration `mapstructure:"max_jitter"`
}

type PacingConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Jitter            float64 `mapstructure:"jitter"`
}

type EnrichConfig struct {
	Mode        string        `mapstructure:"mode"`
	MaxURIs     int           `mapstructure:"max_uris"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

type ExportConfig struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type FetchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Fingerprint string        `mapstructure:"fingerprint"`
	ProxyFile   string        `mapstructure:"proxy_file"`
	UserAgents  []string      `mapstructure:"user_agents"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Window int    `mapstructure:"window"`
}

// Config holds all qparser settings.
type Config struct {
	Provider       string        `mapstructure:"provider"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	SearXNGURL     string        `mapstructure:"searxng_url"`
	Concurrency    int           `mapstructure:"concurrency"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	TaskRetryDelay time.Duration `mapstructure:"task_retry_delay"`
	Stagger        time.Duration `mapstructure:"stagger"`
	MetricsPort    int           `mapstructure:"metrics_port"`
	Retry          RetryConfig   `mapstructure:"retry"`
	Pacing         PacingConfig  `mapstructure:"pacing"`
	Enrich         EnrichConfig  `mapstructure:"enrich"`
	Export         ExportConfig  `mapstructure:"export"`
	Fetch          FetchConfig   `mapstructure:"fetch"`
	Log            LogConfig     `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "gemini")
	v.SetDefault("api_key", "")
	v.SetDefault("model", "gemini-3-flash-preview")
	v.SetDefault("searxng_url", "http://localhost:8888")
	v.SetDefault("concurrency", 4)
	v.SetDefault("call_timeout", 60*time.Second)
	v.SetDefault("task_retry_delay", 3*time.Second)
	v.SetDefault("stagger", time.Duration(0))
	v.SetDefault("metrics_port", 0)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", 1200*time.Millisecond)
	v.SetDefault("retry.factor", 2.0)
	v.SetDefault("retry.max_jitter", 500*time.Millisecond)

	v.SetDefault("pacing.requests_per_second", 0.0)
	v.SetDefault("pacing.jitter", 0.0)

	// empty resolves against the provider in Load
	v.SetDefault("enrich.mode", "")
	v.SetDefault("enrich.max_uris", 10)
	v.SetDefault("enrich.timeout", 60*time.Second)
	v.SetDefault("enrich.concurrency", 2)

	v.SetDefault("export.format", string(storage.FormatNone))
	v.SetDefault("export.path", "")
	v.SetDefault("export.dsn", "")

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("fetch.proxy_file", "")
	v.SetDefault("fetch.user_agents", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.window", 25)
}

// Load resolves the configuration. path names an optional config file
// (YAML, TOML or JSON by extension). flags maps config keys to command line
// flags; a flag only overrides the other sources when it was set.
func Load(path string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	for key, f := range flags {
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("config: bind flag %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = firstEnv("GEMINI_API_KEY", "API_KEY")
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Enrich.Mode = strings.ToLower(strings.TrimSpace(cfg.Enrich.Mode))
	if cfg.Enrich.Mode == "" {
		cfg.Enrich.Mode = string(enrich.ModeOff)
		if cfg.Provider == "gemini" {
			cfg.Enrich.Mode = string(enrich.ModeGemini)
		}
	}

	return cfg, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	known := false
	for _, p := range Providers {
		if c.Provider == p {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("config: unknown provider %q (want one of %s)", c.Provider, strings.Join(Providers, ", "))
	}

	mode, ok := enrich.ParseMode(c.Enrich.Mode)
	if !ok {
		return fmt.Errorf("config: unknown enrich mode %q", c.Enrich.Mode)
	}
	if (c.Provider == "gemini" || mode == enrich.ModeGemini) && c.APIKey == "" {
		return ErrMissingAPIKey
	}

	format, err := storage.ParseFormat(c.Export.Format)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch format {
	case storage.FormatNone:
	case storage.FormatPostgres:
		if c.Export.DSN == "" {
			return ErrMissingTarget
		}
	default:
		if c.Export.Path == "" && c.Export.DSN == "" {
			return ErrMissingTarget
		}
	}

	if _, err := fingerprint.ParseProfile(c.Fetch.Fingerprint); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("config: concurrency must be > 0, got %d", c.Concurrency)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("config: retry.max_attempts must be > 0, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Factor < 1 {
		return fmt.Errorf("config: retry.factor must be >= 1, got %g", c.Retry.Factor)
	}
	if c.Pacing.RequestsPerSecond < 0 {
		return fmt.Errorf("config: pacing.requests_per_second must be >= 0")
	}
	if c.Enrich.MaxURIs <= 0 || c.Enrich.Concurrency <= 0 {
		return fmt.Errorf("config: enrich.max_uris and enrich.concurrency must be > 0")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}
