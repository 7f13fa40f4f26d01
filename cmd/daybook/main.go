package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"daybook/internal/capture"
	"daybook/internal/config"
	appLog "daybook/internal/log"
	"daybook/internal/metrics"
	"daybook/internal/pipeline"
)

var (
	cfgFile   string
	logLevel  string
	chromeBin string
	noSandbox bool
)

var rootCmd = &cobra.Command{
	Use:   "daybook",
	Short: "Render calendar feeds into a printable day planner",
	Long: `Daybook fetches ICS subscriptions and Google calendars, lays every day
out as a timeline page followed by paginated event details, and prints the
result to PDF through headless Chromium.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		appLog.SetLevel(appLog.ParseLevel(logLevel))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, error)")
	rootCmd.PersistentFlags().StringVar(&chromeBin, "chrome", "", "Chromium binary (default: search PATH)")
	rootCmd.PersistentFlags().BoolVar(&noSandbox, "no-sandbox", false, "Disable the Chromium sandbox (needed as root in containers)")
}

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadPipeline loads the config file and builds a pipeline around it.
func loadPipeline(withBrowser bool) (*pipeline.Pipeline, *metrics.Recorder, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	appLog.Info("effective config",
		"config_path", cfgFile,
		"timezone", cfg.Timezone,
		"days", cfg.Days,
		"backfill", cfg.Backfill,
		"font_scale", cfg.FontScale,
		"ics_count", len(cfg.ICS),
		"google", cfg.Google.Enabled(),
	)

	rec := metrics.New()
	var browser pipeline.Browser
	if withBrowser {
		browser = capture.NewChromium(capture.Options{
			ExecPath:  chromeBin,
			NoSandbox: noSandbox,
			Timeout:   cfg.ChromeTimeout,
		})
	}
	return pipeline.New(cfg, browser, rec), rec, nil
}
