package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/liftsync/internal/plan"
	"github.com/roach88/liftsync/internal/workout"
)

// SessionOptions holds flags for the session subcommands.
type SessionOptions struct {
	*RootOptions
	PlanFile string
	SplitID  string
	DayID    string

	Weight float64
	Reps   int
	Note   string
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Drive the active workout session",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start a session from a plan file or a cached split",
		Long: `Start a guided session on one day of a plan.

The plan comes either from a local .cue/.yaml/.json file or from the
splits collection pulled from the server on the last sync.

Example:
  liftsync session start --plan ./ppl.cue --day push
  liftsync session start --split 0193a1c2-... --day legs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionStart(cmd, opts)
		},
	}
	start.Flags().StringVar(&opts.PlanFile, "plan", "", "plan file (.cue, .yaml, .yml, .json)")
	start.Flags().StringVar(&opts.SplitID, "split", "", "id of a cached split")
	start.Flags().StringVar(&opts.DayID, "day", "", "plan day id (optional for single-day plans)")
	start.MarkFlagsMutuallyExclusive("plan", "split")
	start.MarkFlagsOneRequired("plan", "split")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd, opts.RootOptions, func(ctx context.Context, app *App, user string) (any, error) {
				sess, err := app.Tracker.Active(ctx, user)
				if err != nil {
					return nil, err
				}
				return sessionView{Session: sess, Now: opts.now()}, nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Record the current set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := workout.SetInput{Repetitions: opts.Reps, Note: opts.Note}
			if cmd.Flags().Changed("weight") {
				w := opts.Weight
				in.Magnitude = &w
			}
			return withUser(cmd, opts.RootOptions, func(ctx context.Context, app *App, user string) (any, error) {
				res, err := app.Tracker.RecordSet(ctx, user, "", in)
				if err != nil {
					return nil, err
				}
				return recordView{RecordResult: res, Now: opts.now()}, nil
			})
		},
	}
	set.Flags().Float64Var(&opts.Weight, "weight", 0, "load in kg (omit for bodyweight)")
	set.Flags().IntVar(&opts.Reps, "reps", 0, "repetitions")
	set.Flags().StringVar(&opts.Note, "note", "", "free-text note")
	_ = set.MarkFlagRequired("reps")

	tick := &cobra.Command{
		Use:   "tick <seconds>",
		Short: "Advance the session timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secs, err := strconv.Atoi(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid seconds", err)
			}
			return withUser(cmd, opts.RootOptions, func(ctx context.Context, app *App, user string) (any, error) {
				sess, _, err := app.Tracker.Tick(ctx, user, "", secs)
				if err != nil {
					return nil, err
				}
				return sessionView{Session: sess, Now: opts.now()}, nil
			})
		},
	}

	cmd.AddCommand(start, status, set, tick,
		sessionAction(opts, "skip-rest", "End the current rest early", trackerSkipRest),
		sessionAction(opts, "pause", "Pause the session clock", trackerPause),
		sessionAction(opts, "resume", "Resume the session clock", trackerResume),
		finishCommand(opts),
		abandonCommand(opts),
	)
	return cmd
}

type sessionFn func(ctx context.Context, app *App, user string) (*workout.Session, error)

func trackerSkipRest(ctx context.Context, app *App, user string) (*workout.Session, error) {
	return app.Tracker.SkipRest(ctx, user, "")
}

func trackerPause(ctx context.Context, app *App, user string) (*workout.Session, error) {
	return app.Tracker.Pause(ctx, user, "")
}

func trackerResume(ctx context.Context, app *App, user string) (*workout.Session, error) {
	return app.Tracker.Resume(ctx, user, "")
}

func sessionAction(opts *SessionOptions, use, short string, fn sessionFn) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd, opts.RootOptions, func(ctx context.Context, app *App, user string) (any, error) {
				sess, err := fn(ctx, app, user)
				if err != nil {
					return nil, err
				}
				return sessionView{Session: sess, Now: opts.now()}, nil
			})
		},
	}
}

func finishCommand(opts *SessionOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "finish",
		Short: "Finish the session and log it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd, opts.RootOptions, func(ctx context.Context, app *App, user string) (any, error) {
				res, err := app.Tracker.Finish(ctx, user, "")
				if err != nil {
					return nil, err
				}
				return finishView{&res}, nil
			})
		},
	}
}

func abandonCommand(opts *SessionOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abandon",
		Short: "Discard the session without logging it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd, opts.RootOptions, func(ctx context.Context, app *App, user string) (any, error) {
				if err := app.Tracker.Abandon(ctx, user, ""); err != nil {
					return nil, err
				}
				return "Session abandoned.", nil
			})
		},
	}
}

func runSessionStart(cmd *cobra.Command, opts *SessionOptions) error {
	return withUser(cmd, opts.RootOptions, func(ctx context.Context, app *App, user string) (any, error) {
		if opts.SplitID != "" {
			sess, err := app.Tracker.StartFromSplit(ctx, user, opts.SplitID, opts.DayID)
			if err != nil {
				return nil, err
			}
			return sessionView{Session: sess, Now: opts.now()}, nil
		}

		p, err := plan.LoadFile(opts.PlanFile)
		if err != nil {
			return nil, err
		}
		day, err := p.Day(opts.DayID)
		if err != nil {
			return nil, err
		}
		sess, err := app.Tracker.Start(ctx, user, p.ID, day)
		if err != nil {
			return nil, err
		}
		return sessionView{Session: sess, Now: opts.now()}, nil
	})
}

// withUser opens the app, resolves the user, runs fn and prints its
// result. Domain errors are reported through the formatter with
// ExitFailure.
func withUser(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, app *App, user string) (any, error)) error {
	out := opts.formatter(cmd)
	return withApp(cmd, opts, func(ctx context.Context, app *App) error {
		user, err := app.requireUser()
		if err != nil {
			return out.Fail(ExitCommandError, "missing user", err)
		}
		res, err := fn(ctx, app, user)
		if err != nil {
			return out.Fail(ExitFailure, cmd.CommandPath(), err)
		}
		return out.Success(res)
	})
}
