package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/syncq"
)

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect actions waiting to be synced",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending actions in drain order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, rootOpts, func(ctx context.Context, app *App) (any, error) {
				actions, err := app.Queue.Pending(ctx)
				if err != nil {
					return nil, err
				}
				syncq.SortActions(actions)
				return actionsView(actions), nil
			})
		},
	})
	return cmd
}

// NewDLQCommand creates the dlq command group.
func NewDLQCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Manage the dead-letter queue",
		Long:  `Inspect and retry actions that failed to sync after exceeding their retry limit.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List dead-lettered actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, rootOpts, func(ctx context.Context, app *App) (any, error) {
				letters, err := app.Queue.DeadLetters(ctx)
				if err != nil {
					return nil, err
				}
				return deadLettersView(letters), nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "retry <action-id>",
		Short: "Move a dead-lettered action back to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, rootOpts, func(ctx context.Context, app *App) (any, error) {
				a, err := app.Queue.Requeue(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return requeuedView{a}, nil
			})
		},
	})
	return cmd
}

type requeuedView struct {
	model.PendingAction
}

func (v requeuedView) Text() string {
	return fmt.Sprintf("Action %s (%s %s %s) requeued.\n", v.ID, v.Operation, v.Entity, v.EntityID)
}

// runQuery opens the app, runs fn and prints its result. Unlike withUser
// it needs no user id.
func runQuery(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, app *App) (any, error)) error {
	out := opts.formatter(cmd)
	return withApp(cmd, opts, func(ctx context.Context, app *App) error {
		res, err := fn(ctx, app)
		if err != nil {
			return out.Fail(ExitFailure, cmd.CommandPath(), err)
		}
		return out.Success(res)
	})
}
