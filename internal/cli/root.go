// Package cli wires the verityd commands: the API server and the schema
// migrator share config loading and logger setup here.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/SynisterSage/verityapp-sub001/internal/config"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the verityd root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "verityd",
		Short: "Call-screening backend for protected profiles",
		Long: `verityd screens inbound calls for vulnerable people: callers are
classified and hashed, checked against each profile's trusted and blocked
ledger, scored for scam risk, and escalated to the caregiver circle.`,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// newLogger builds the process logger. Production emits JSON lines for the
// log pipeline, everything else stays human readable.
func newLogger(cfg *config.Config, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Production() {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	return slog.New(handler)
}
