package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/breeze-rmm/cablerouter/internal/audio"
	"github.com/breeze-rmm/cablerouter/internal/audio/wasapi"
	"github.com/breeze-rmm/cablerouter/internal/config"
	"github.com/breeze-rmm/cablerouter/internal/health"
	"github.com/breeze-rmm/cablerouter/internal/logging"
	"github.com/breeze-rmm/cablerouter/internal/metrics"
	"github.com/breeze-rmm/cablerouter/internal/pipeline"
	"github.com/breeze-rmm/cablerouter/internal/router"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "cable-router",
	Short: "Route system audio into a virtual cable",
	Long: `cable-router captures whatever the default playback device is playing
(WASAPI loopback) and renders it into a VB-Audio virtual cable, so other
applications can record it from the cable's output side.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start routing until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		code := runRouter(ctx, wasapi.NewSubsystem())
		stop()
		os.Exit(code)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cable-router v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is cable-router.yaml in the config directory)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the config, then initializes logging. The
// returned func closes the log file.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		return nil, nil, fmt.Errorf("invalid config: %w", errors.Join(result.Fatals...))
	}

	out, closer, err := logging.Output(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		return nil, nil, err
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)

	for _, w := range result.Warnings {
		log.Warn("config adjusted", logging.Err(w))
	}
	return cfg, func() { closer.Close() }, nil
}

// runRouter routes audio over sub until ctx is cancelled and returns the
// process exit code: 0 after cancellation, 1 when setup fails.
func runRouter(ctx context.Context, sub audio.Subsystem) int {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	log.Info("starting cable-router", "version", version)
	metrics.LogHost()

	provider, err := metrics.InitProvider(ctx, metrics.ProviderConfig{ServiceVersion: version})
	if err != nil {
		log.Error("metrics provider", logging.Err(err))
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		provider.Shutdown(shutdownCtx)
	}()

	m, err := metrics.NewMetrics(provider.MeterProvider)
	if err != nil {
		log.Error("metrics instruments", logging.Err(err))
		return 1
	}
	mon := health.NewMonitor()

	p := pipeline.New(sub,
		pipeline.WithHealth(mon),
		pipeline.WithMetrics(m),
		pipeline.WithRouterOptions(router.WithIdleInterval(cfg.IdlePoll())),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := p.Run(gctx)
		if err == nil {
			// Stop the helpers once routing has ended.
			return context.Canceled
		}
		return err
	})
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, provider.Registry, mon)
		g.Go(func() error { return srv.Run(gctx) })
	}
	reporter := metrics.NewReporter(cfg.StatsInterval(), m, mon)
	g.Go(func() error { return reporter.Run(gctx) })

	err = g.Wait()
	var stageErr *pipeline.StageError
	switch {
	case errors.As(err, &stageErr):
		// Already logged by the pipeline.
		return 1
	case err != nil && !errors.Is(err, context.Canceled):
		log.Error("router stopped", logging.Err(err))
		return 1
	}

	reporter.Report()
	log.Info("shut down")
	return 0
}
