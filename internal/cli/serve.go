package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/liftsync/internal/config"
	"github.com/roach88/liftsync/internal/logger"
	"github.com/roach88/liftsync/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the background sync scheduler and the local status server",
		Long: `Run the sync scheduler in the foreground and expose its state over HTTP.

The scheduler polls connectivity and drains the queue every sync.interval,
and immediately after each new queued action. Reconnecting runs a full
pull-then-drain pass.

Endpoints:
  GET  /healthz          liveness
  GET  /status           connectivity and sync state
  GET  /status/events    server-sent status updates
  POST /sync             run a sync cycle (?drain_only=true)
  GET  /queue            pending actions
  GET  /dlq              dead-lettered actions
  POST /dlq/{id}/retry   requeue a dead-lettered action
  GET  /metrics          Prometheus metrics

Example:
  liftsync serve --addr 127.0.0.1:7070`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:7070", "listen address")
	_ = rootOpts.v.BindPFlag(config.KeyServeAddr, cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return withApp(cmd, opts, func(_ context.Context, app *App) error {
		srv := server.New(app.Config.Serve.Addr, server.Deps{
			Syncer:  app.Engine,
			Queue:   app.Queue,
			Status:  app.Observer,
			Metrics: app.Metrics,
			Logger:  logger.New(),
		})

		app.Scheduler.Start(ctx)
		app.Scheduler.RunOnce(ctx)

		fmt.Fprintf(cmd.OutOrStdout(), "Sync scheduler running every %s. Status on http://%s\n",
			app.Config.Sync.Interval, app.Config.Serve.Addr)
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

		if err := srv.Run(ctx); err != nil {
			return WrapExitError(ExitFailure, "server error", err)
		}
		slog.Info("server stopped gracefully")
		return nil
	})
}
