// Package cli implements the qparser command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FranksOps/qparser/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is overridden at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

type globalOptions struct {
	configPath string
	showLog    bool
}

// flagKeys maps global flag names to configuration keys.
var flagKeys = map[string]string{
	"provider":      "provider",
	"model":         "model",
	"searxng-url":   "searxng_url",
	"concurrency":   "concurrency",
	"export-format": "export.format",
	"export-path":   "export.path",
	"export-dsn":    "export.dsn",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"metrics-port":  "metrics_port",
	"enrich":        "enrich.mode",
	"fingerprint":   "fetch.fingerprint",
	"proxy-file":    "fetch.proxy_file",
	"rps":           "pacing.requests_per_second",
}

// NewRootCommand builds the qparser command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "qparser",
		Short:         "Harvest search result links for one or many queries",
		Long:          "qparser submits queries to a search provider, collects deduplicated result links grouped by domain and optionally analyzes each session.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (yaml, toml or json)")
	pf.BoolVar(&opts.showLog, "show-log", false, "print the recent log window when done")
	pf.String("provider", "gemini", "search provider: gemini, searxng or duckduckgo")
	pf.String("model", "", "gemini model")
	pf.String("searxng-url", "", "SearXNG base url")
	pf.Int("concurrency", 4, "number of parallel queries in batch mode")
	pf.String("export-format", "none", "export format: none, txt, csv, ndjson, xlsx, sqlite, postgres")
	pf.String("export-path", "", "export file path")
	pf.String("export-dsn", "", "database dsn for sqlite or postgres export")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.Int("metrics-port", 0, "serve prometheus metrics on this port (0 disables)")
	pf.String("enrich", "", "session analysis: gemini, probe or off (default gemini for the gemini provider, otherwise off)")
	pf.String("fingerprint", "go", "tls fingerprint for http providers: go, chrome, firefox, safari, random")
	pf.String("proxy-file", "", "file with one proxy url per line")
	pf.Float64("rps", 0, "max remote calls per second (0 is unlimited)")

	root.AddCommand(
		newSearchCommand(opts),
		newBatchCommand(opts),
		newPresetsCommand(),
		newVersionCommand(),
	)
	return root
}

// loadConfig resolves configuration for cmd, honouring only flags the user set.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	flags := make(map[string]*pflag.Flag, len(flagKeys))
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			flags[key] = f
		}
	}
	cfg, err := config.Load(opts.configPath, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "qparser:", err)
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}
