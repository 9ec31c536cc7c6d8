package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/liftsync/internal/syncq"
)

// errOffline is returned by sync when the server cannot be reached.
var errOffline = errors.New("server unreachable, sync skipped")

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var drainOnly bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull server collections and deliver queued actions",
		Long: `Run one sync cycle: refresh the cached collections from the server,
then deliver every queued action in priority order.

Actions that fail stay queued with an incremented retry count; after
three failures they move to the dead-letter queue (see "liftsync dlq").

Example:
  liftsync sync
  liftsync sync --drain-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				if !app.Observer.IsOnline() {
					return out.Fail(ExitFailure, "sync", errOffline)
				}

				var (
					rep syncq.Report
					err error
				)
				if drainOnly {
					rep, err = app.Engine.Drain(ctx)
				} else {
					rep, err = app.Engine.PullThenDrain(ctx)
				}

				view := reportView{Report: rep}
				if err != nil {
					view.Error = err.Error()
				}
				if outErr := out.Success(view); outErr != nil {
					return outErr
				}
				if err != nil {
					return WrapExitError(ExitFailure, "sync finished with errors", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&drainOnly, "drain-only", false, "skip the pull and only deliver queued actions")
	return cmd
}

type sweepView struct {
	Removed int64 `json:"removed"`
}

func (v sweepView) Text() string {
	return fmt.Sprintf("Removed %d expired cache entries.\n", v.Removed)
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached server responses",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Remove expired cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, rootOpts, func(ctx context.Context, app *App) (any, error) {
				n, err := app.Cache.Sweep(ctx)
				if err != nil {
					return nil, err
				}
				return sweepView{Removed: n}, nil
			})
		},
	})
	return cmd
}
