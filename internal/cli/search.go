package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand(opts *globalOptions) *cobra.Command {
	var noWait bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single query and print its session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			s, runErr := a.task.Run(ctx, strings.Join(args, " "))

			waitCtx := ctx
			if runErr != nil || noWait {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithCancel(ctx)
				cancel()
			}
			a.finish(waitCtx)
			if runErr == nil {
				if latest, ok := a.store.Get(s.ID); ok {
					s = latest
				}
			}
			if opts.showLog {
				a.window.WriteTo(cmd.ErrOrStderr())
			}
			if runErr != nil {
				return describeError(runErr)
			}

			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "print without waiting for the analysis")
	return cmd
}
