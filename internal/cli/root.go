package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/liftsync/internal/config"
	"github.com/roach88/liftsync/internal/logger"
	"github.com/roach88/liftsync/internal/remote"
	"github.com/roach88/liftsync/internal/syncq"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	v *viper.Viper

	// Transport and Clock override the server client and wall clock (for
	// testing). Nil uses remote.Client and syncq.SystemClock.
	Transport remote.Transport
	Clock     syncq.Clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the liftsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	if opts.v == nil {
		opts.v = config.New()
	}

	cmd := &cobra.Command{
		Use:   "liftsync",
		Short: "liftsync - offline-first workout tracking",
		Long: `liftsync drives a guided workout session on this device and mirrors it
to the server through a retrying action queue.

Every change is stored locally first. While the server is unreachable,
changes wait in the queue and are delivered in priority order on the
next sync; actions that fail three times are moved to the dead-letter
queue for inspection.

Configuration:
  Flags override LIFTSYNC_* environment variables, which override the
  config file (default $HOME/.liftsync.yaml).
    LIFTSYNC_SERVER_URL     server base URL
    LIFTSYNC_SERVER_TOKEN   bearer token
    LIFTSYNC_USER           user id
    LIFTSYNC_DB             local database path`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if err := config.ReadFile(opts.v, opts.ConfigFile); err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			logger.Setup(logger.Options{Verbose: opts.Verbose, Output: cmd.ErrOrStderr()})
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default is $HOME/.liftsync.yaml)")

	pf.String("db", "liftsync.db", "path to the local SQLite database")
	pf.String("user", "", "user id")
	pf.String("server", "http://localhost:8080", "server base URL")
	pf.StringP("token", "t", "", "bearer token for the server")
	pf.Bool("offline", false, "never contact the server; queue every change")
	bindFlag(opts.v, config.KeyDB, cmd, "db")
	bindFlag(opts.v, config.KeyUser, cmd, "user")
	bindFlag(opts.v, config.KeyServerURL, cmd, "server")
	bindFlag(opts.v, config.KeyServerToken, cmd, "token")
	bindFlag(opts.v, config.KeyOffline, cmd, "offline")

	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewWeightCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewDLQCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	_ = v.BindPFlag(key, cmd.PersistentFlags().Lookup(name))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) now() time.Time {
	if o.Clock != nil {
		return o.Clock.Now()
	}
	return time.Now().UTC()
}
