package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/jirasync/internal/config"
	"github.com/steveyegge/jirasync/internal/idgen"
	"github.com/steveyegge/jirasync/internal/telemetry"
	"github.com/steveyegge/jirasync/internal/ui"
)

var (
	configFile   string
	jsonOutput   bool
	outputFormat string
	verboseFlag  bool
	quietFlag    bool
	dryRunFlag   bool
	noPager      bool

	// cfg and logger are set by the root PersistentPreRunE.
	cfg    *config.Config
	logger *slog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: $JIRASYNC_CONFIG, ./.jirasync.yaml, ~/.config/jirasync/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (same as -o json)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Log errors only")
	rootCmd.PersistentFlags().BoolVar(&dryRunFlag, "dry-run", false, "Plan transitions without changing Jira")
	rootCmd.PersistentFlags().BoolVar(&noPager, "no-pager", false, "Do not pipe long output through a pager")

	rootCmd.AddGroup(&cobra.Group{ID: "issues", Title: "Moving Issues:"})
	rootCmd.AddGroup(&cobra.Group{ID: "sync", Title: "GitHub Events:"})
	rootCmd.AddGroup(&cobra.Group{ID: "inspect", Title: "Workflows & Setup:"})
}

var rootCmd = &cobra.Command{
	Use:   "jirasync",
	Short: "jirasync - move Jira issues through their workflows from GitHub events",
	Long: `jirasync finds the Jira issues a pull request or push refers to and walks
each one through its project's workflow to the status configured for the
branch, filling required transition fields on the way.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		if err := validateOutputFormat(); err != nil {
			return err
		}
		if err := config.Initialize(configFile); err != nil {
			return err
		}
		if cmd.Flags().Changed("dry-run") {
			config.Set("dry_run", dryRunFlag)
		}
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		runID, err := idgen.RunID(os.Getenv)
		if err != nil {
			return err
		}
		logger = newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat).With("run", runID)
		slog.SetDefault(logger)
		ui.ConfigureColor()

		run := telemetry.Run{Service: "jirasync", Version: Version, ID: runID, Repository: cfg.GitHub.Repository}
		if err := telemetry.Init(cmd.Context(), telemetry.SettingsFromEnv(os.Getenv), run); err != nil {
			logger.Warn("telemetry disabled", "error", err)
		}
		return nil
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := telemetry.Shutdown(shutdownCtx); serr != nil && logger != nil {
		logger.Warn("telemetry flush failed", "error", serr)
	}
	done()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			os.Exit(130)
		}
		if structured() {
			outputJSONError(err)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
