package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/webguard/config"
	"github.com/angeloszaimis/webguard/internal/broadcast"
	"github.com/angeloszaimis/webguard/internal/dashboard"
	"github.com/angeloszaimis/webguard/internal/httpserver"
	"github.com/angeloszaimis/webguard/internal/metrics"
	"github.com/angeloszaimis/webguard/internal/prober"
	"github.com/angeloszaimis/webguard/pkg/logger"
)

const metricsBufferSize = 256

var errTargetOffline = errors.New("target is offline")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "webguard",
		Short:         "Monitor a website and stream its status to a live dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfgFile)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config/config.yaml or ./config.yaml)")

	rootCmd.AddCommand(newCheckCmd(&cfgFile))

	return rootCmd
}

func newCheckCmd(cfgFile *string) *cobra.Command {
	var target string

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single probe cycle and print the observation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			if target != "" {
				cfg.Probe.Target = target
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, false, cfg.Server.Environment)
			return runCheck(cmd.Context(), cfg, log, cmd.OutOrStdout())
		},
	}
	checkCmd.Flags().StringVarP(&target, "target", "t", "", "override the configured probe target")

	return checkCmd
}

func runServe(parent context.Context, cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		return err
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(metricsBufferSize, log)
	collector.Start(ctx)

	broadcaster := broadcast.New(log, collector)
	tracker := dashboard.NewTracker()

	page, err := dashboard.NewPage(dashboard.PageData{
		Target:              cfg.Probe.Target,
		Interval:            cfg.Probe.IntervalDuration(),
		SlowThresholdMillis: cfg.Probe.SlowThresholdDuration().Milliseconds(),
	})
	if err != nil {
		log.Error("Failed to render dashboard", slog.Any("err", err))
		return err
	}

	p := prober.New(proberConfig(cfg), prober.Publishers{tracker, broadcaster}, log,
		prober.WithCollector(collector))

	router := setupRouter(routes{
		target:      cfg.Probe.Target,
		queueSize:   cfg.Broadcast.QueueSize,
		page:        page,
		tracker:     tracker,
		broadcaster: broadcaster,
		collector:   collector,
		logger:      log,
	})

	srv, err := httpserver.New(cfg.Server.Address(), router, log)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		return err
	}
	srv.RegisterOnShutdown(func() {
		if err := broadcaster.Close(); err != nil {
			log.Warn("Error closing observers", slog.Any("err", err))
		}
	})

	log.Info("Starting monitor",
		slog.String("target", cfg.Probe.Target),
		slog.Duration("interval", cfg.Probe.IntervalDuration()),
		slog.Duration("timeout", cfg.Probe.TimeoutDuration()))

	go p.Run(ctx)

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
			return err
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			return err
		}
	}

	return nil
}

// runCheck performs one probe cycle and writes the observation payload to
// out. An offline target is reported as errTargetOffline.
func runCheck(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer) error {
	p := prober.New(proberConfig(cfg), prober.Publishers{}, log)
	obs := p.RunCycle(ctx)

	payload, err := obs.Payload()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out, string(payload)); err != nil {
		return err
	}

	if !obs.IsOnline() {
		return errTargetOffline
	}
	return nil
}

func proberConfig(cfg *config.Config) prober.Config {
	return prober.Config{
		Target:        cfg.Probe.Target,
		Interval:      cfg.Probe.IntervalDuration(),
		Timeout:       cfg.Probe.TimeoutDuration(),
		SlowThreshold: cfg.Probe.SlowThresholdDuration(),
		TimeFormat:    cfg.Probe.TimeFormat,
	}
}
