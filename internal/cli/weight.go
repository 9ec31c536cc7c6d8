package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/liftsync/internal/model"
)

type weightView struct {
	model.WeightEntry
}

func (v weightView) Text() string {
	return fmt.Sprintf("Logged %g kg (%s).\n", v.Weight, v.ID)
}

// NewWeightCommand creates the weight command group.
func NewWeightCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weight",
		Short: "Track body weight",
	}

	var note string
	logCmd := &cobra.Command{
		Use:   "log <kg>",
		Short: "Record a body-weight entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kg, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid weight", err)
			}
			return withUser(cmd, rootOpts, func(ctx context.Context, app *App, user string) (any, error) {
				e, err := app.Tracker.LogWeight(ctx, user, kg, note)
				if err != nil {
					return nil, err
				}
				return weightView{e}, nil
			})
		},
	}
	logCmd.Flags().StringVar(&note, "note", "", "free-text note")

	cmd.AddCommand(logCmd)
	return cmd
}
