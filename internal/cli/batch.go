package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/FranksOps/qparser/internal/harvester"
	"github.com/FranksOps/qparser/internal/report"
	"github.com/FranksOps/qparser/internal/session"
	"github.com/FranksOps/qparser/internal/storage"
	"github.com/spf13/cobra"
)

type batchOptions struct {
	file         string
	presets      []string
	reportFormat string
	reportPath   string
	history      bool
}

func newBatchCommand(opts *globalOptions) *cobra.Command {
	bo := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run many queries, one per line, from a file or stdin",
		Long:  "Runs every query through a bounded worker pool. Queries are read from --file, from --preset groups, or from stdin when neither is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, bo)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&bo.file, "file", "f", "", "file with one query per line (- for stdin)")
	f.StringSliceVar(&bo.presets, "preset", nil, "add a preset query by label, or all")
	f.StringVar(&bo.reportFormat, "report", "text", "summary format: text, json or html")
	f.StringVar(&bo.reportPath, "report-path", "", "write the summary to this file instead of stdout")
	f.BoolVar(&bo.history, "history", true, "list the sessions produced, newest first")
	return cmd
}

func runBatch(cmd *cobra.Command, opts *globalOptions, bo *batchOptions) error {
	queries, err := collectQueries(cmd.InOrStdin(), bo)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return fmt.Errorf("no queries given")
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	sched := harvester.NewScheduler(a.task, harvester.BatchConfig{
		Concurrency:    cfg.Concurrency,
		TaskRetryDelay: cfg.TaskRetryDelay,
		Stagger:        cfg.Stagger,
		OnProgress: func(p harvester.Progress) {
			fmt.Fprintf(errOut, "progress %d/%d\n", p.Completed, p.Total)
		},
	}, a.logger)

	out, runErr := sched.Run(ctx, queries)
	a.finish(ctx)

	if bo.history {
		printHistory(cmd.OutOrStdout(), a.store.List())
		fmt.Fprintln(cmd.OutOrStdout())
	}

	summary := report.GenerateSummary(out, completionOrder(a, out))
	if err := writeReport(cmd.OutOrStdout(), bo, summary); err != nil {
		return err
	}
	if opts.showLog {
		a.window.WriteTo(errOut)
	}
	return runErr
}

// completionOrder returns the outcome's sessions with the analyses attached
// since they were published.
func completionOrder(a *app, out *harvester.Outcome) []*session.Session {
	if out == nil {
		return nil
	}
	list := make([]*session.Session, 0, len(out.Sessions))
	for _, s := range out.Sessions {
		if latest, ok := a.store.Get(s.ID); ok {
			s = latest
		}
		list = append(list, s)
	}
	return list
}

func writeReport(stdout io.Writer, bo *batchOptions, summary report.Summary) error {
	w := stdout
	if bo.reportPath != "" {
		f, err := os.Create(bo.reportPath)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		defer f.Close()
		w = f
	}
	return report.Write(w, bo.reportFormat, summary)
}

func collectQueries(stdin io.Reader, bo *batchOptions) ([]string, error) {
	var queries []string

	for _, name := range bo.presets {
		matched, ok := lookupPresets(name)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", name)
		}
		for _, p := range matched {
			queries = append(queries, p.Query)
		}
	}

	var r io.Reader
	switch {
	case bo.file == "-":
		r = stdin
	case bo.file != "":
		f, err := os.Open(bo.file)
		if err != nil {
			return nil, fmt.Errorf("open queries: %w", err)
		}
		defer f.Close()
		r = f
	case len(queries) == 0:
		r = stdin
	}

	if r != nil {
		read, err := storage.ReadQueries(r)
		if err != nil {
			return nil, err
		}
		queries = append(queries, read...)
	}
	return queries, nil
}
