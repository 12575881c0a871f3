package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	t.Setenv("QPARSER_API_KEY", "")
}

func TestLoad_Defaults(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, "gemini-3-flash-preview", cfg.Model)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.CallTimeout)
	assert.Equal(t, 3*time.Second, cfg.TaskRetryDelay)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1200*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 2.0, cfg.Retry.Factor)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.MaxJitter)
	assert.Equal(t, "gemini", cfg.Enrich.Mode)
	assert.Equal(t, 10, cfg.Enrich.MaxURIs)
	assert.Equal(t, "none", cfg.Export.Format)
	assert.Equal(t, 25, cfg.Log.Window)

	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestLoad_EnrichDefaultFollowsProvider(t *testing.T) {
	clearKeyEnv(t)

	for _, provider := range []string{"searxng", "duckduckgo"} {
		t.Setenv("QPARSER_PROVIDER", provider)
		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "off", cfg.Enrich.Mode, provider)
		assert.NoError(t, cfg.Validate(), provider)
	}

	t.Setenv("QPARSER_PROVIDER", "duckduckgo")
	t.Setenv("QPARSER_ENRICH_MODE", "probe")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "probe", cfg.Enrich.Mode)
}

func TestLoad_EnvAndFallbackKey(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GEMINI_API_KEY", "from-gemini-env")
	t.Setenv("QPARSER_CONCURRENCY", "7")
	t.Setenv("QPARSER_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("QPARSER_ENRICH_TIMEOUT", "15s")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "from-gemini-env", cfg.APIKey)
	assert.Equal(t, 7, cfg.Concurrency)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Enrich.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PrefixedKeyWins(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("QPARSER_API_KEY", "prefixed")
	t.Setenv("API_KEY", "generic")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.APIKey)
}

func TestLoad_FileAndFlags(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "qparser.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: searxng
searxng_url: http://search.local
concurrency: 2
enrich:
  mode: probe
export:
  format: csv
  path: out.csv
`), 0644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("concurrency", 4, "")
	fs.String("export-format", "", "")
	require.NoError(t, fs.Parse([]string{"--concurrency=9"}))

	cfg, err := Load(path, map[string]*pflag.Flag{
		"concurrency":   fs.Lookup("concurrency"),
		"export.format": fs.Lookup("export-format"),
	})
	require.NoError(t, err)

	assert.Equal(t, "searxng", cfg.Provider)
	assert.Equal(t, "http://search.local", cfg.SearXNGURL)
	assert.Equal(t, 9, cfg.Concurrency, "set flag overrides the file")
	assert.Equal(t, "csv", cfg.Export.Format, "unset flag leaves the file value")
	assert.Equal(t, "probe", cfg.Enrich.Mode)
	assert.NoError(t, cfg.Validate(), "no api key needed without gemini")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearKeyEnv(t)
	base := func() *Config {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		cfg.APIKey = "k"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.Provider = "bing" }},
		{"enrich mode", func(c *Config) { c.Enrich.Mode = "magic" }},
		{"export format", func(c *Config) { c.Export.Format = "parquet" }},
		{"export target", func(c *Config) { c.Export.Format = "csv" }},
		{"postgres dsn", func(c *Config) { c.Export.Format = "postgres"; c.Export.Path = "x" }},
		{"fingerprint", func(c *Config) { c.Fetch.Fingerprint = "opera" }},
		{"concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"factor", func(c *Config) { c.Retry.Factor = 0.5 }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base().Validate())
}
