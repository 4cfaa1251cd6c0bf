// Command linemodel runs the line-model procedures on local CSV files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/linemodel/internal/config"
	"github.com/JonMunkholm/linemodel/internal/core"
	"github.com/JonMunkholm/linemodel/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		}
		stop()
		os.Exit(1)
	}
}

// app carries state shared by every subcommand.
type app struct {
	logLevel  string
	logFormat string

	service *core.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "linemodel",
		Short: "Join line layouts and build raw-data efficiency models from CSV exports",
		Long: `linemodel runs the layout join and the raw-data aggregation on local files.

Defaults come from the same environment variables as the server (RAWDATA_*,
PIPELINE_*), read from .env when present. Flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (default from LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text|json (default from LOG_FORMAT)")

	rootCmd.AddCommand(
		newLayoutCmd(a),
		newRawDataCmd(a),
		newPresetsCmd(a),
	)
	return rootCmd
}

// setup loads configuration, sends logs to stderr and builds the service.
func (a *app) setup(cmd *cobra.Command) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	service, err := core.NewService(cfg, nil)
	if err != nil {
		return err
	}
	a.service = service
	return nil
}
