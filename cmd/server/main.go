// Package main is the commlog command: it serves the communication log API,
// applies database migrations and bootstraps user accounts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/commlog/internal/config"
	"github.com/atinyakov/commlog/internal/logger"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	dsn        string
}

func newRootCmd() *cobra.Command {
	var gf globalFlags

	root := &cobra.Command{
		Use:           "commlog",
		Short:         "Communication log tracking server",
		Version:       fmt.Sprintf("%s (built %s)", firstNonEmpty(version, "N/A"), firstNonEmpty(buildDate, "N/A")),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&gf.configPath, "config", "c", "", "path to a YAML config file (default $CONFIG)")
	root.PersistentFlags().StringVarP(&gf.dsn, "database-dsn", "d", "", "PostgreSQL connection string")

	root.AddCommand(
		newServeCmd(&gf),
		newMigrateCmd(&gf),
		newUserCmd(&gf),
	)
	return root
}

// loadOptions layers the command-line flags over config.Load.
func loadOptions(cmd *cobra.Command, gf *globalFlags) (*config.Options, error) {
	opts, err := config.Load(gf.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("database-dsn") {
		opts.Database.DSN = gf.dsn
	}
	return opts, nil
}

// newLogger builds the zap logger for opts.
func newLogger(opts *config.Options) (*zap.Logger, error) {
	l := logger.New()
	if err := l.Init(opts.Log.Level); err != nil {
		return nil, err
	}
	return l.Log, nil
}

// firstNonEmpty returns the first non-empty string (equivalent to cmp.Or, which needs Go 1.22).
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
