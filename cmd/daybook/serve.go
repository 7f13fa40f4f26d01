package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"daybook/internal/config"
	appLog "daybook/internal/log"
	"daybook/internal/pipeline"
	"daybook/internal/web"
)

var (
	serveListen   string
	renderOnStart bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the book over HTTP and re-render it on the refresh schedule",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")
	serveCmd.Flags().BoolVar(&renderOnStart, "render-on-start", false, "Write the PDF once before waiting for the schedule")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, rec, err := loadPipeline(true)
	if err != nil {
		return err
	}
	cfg := p.Config()

	// CLI --listen overrides config file listen if provided.
	listen := cfg.Listen
	if serveListen != "" {
		listen = serveListen
	}

	srv := web.NewServer(p, rec)
	sched := pipeline.NewScheduler(p, func(string, error) { srv.Invalidate() })
	if err := sched.Reschedule(cfg); err != nil {
		return fmt.Errorf("refresh schedule: %w", err)
	}

	watcher, err := config.Watch(cfgFile, func(next *config.Config) {
		p.SetConfig(next)
		srv.Invalidate()
		if err := sched.Reschedule(next); err != nil {
			appLog.Error("keeping previous refresh schedule", err)
		}
	})
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	sched.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return web.StartServer(gctx, listen, srv) })
	if renderOnStart {
		g.Go(func() error {
			if _, err := p.Run(gctx); err != nil {
				appLog.Error("initial render failed", err)
			}
			return nil
		})
	}

	err = g.Wait()
	appLog.Info("daybook exiting")
	return err
}
