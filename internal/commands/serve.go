package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/datavet-systems/datavet/internal/alert"
	"github.com/datavet-systems/datavet/internal/config"
	"github.com/datavet-systems/datavet/internal/engine"
	"github.com/datavet-systems/datavet/internal/monitor"
	"github.com/datavet-systems/datavet/internal/quality"
	"github.com/datavet-systems/datavet/internal/rules"
	"github.com/datavet-systems/datavet/internal/server"
	"github.com/datavet-systems/datavet/internal/telemetry"
)

const (
	defaultSweepSchedule = "@hourly"
	shutdownTimeout      = 10 * time.Second
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the datavet API server",
		Long: `Serve starts the HTTP API with the configured history store, quality
monitor, and alert sinks, and runs the retention sweeper on its
schedule until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	logger := slog.Default()
	ctx := context.Background()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("starting %s store: %w", storeName(cfg.Store), err)
	}

	dispatcher, err := alert.NewDispatcher(cfg.Alerts)
	if err != nil {
		return fmt.Errorf("building alert dispatcher: %w", err)
	}
	dispatcher.SetLogger(logger)

	mon := monitor.New(store, cfg.Monitor)
	mon.SetLogger(logger)
	mon.SetNotifier(dispatcher.NotifyFunc())

	reg := rules.NewRegistry()
	exec := engine.New(reg)
	exec.SetLogger(logger)
	applyEngineConfig(exec, cfg.Engine)

	calc, err := quality.NewFromConfig(cfg.Quality)
	if err != nil {
		return fmt.Errorf("building quality calculator: %w", err)
	}

	sweeper := cron.New()
	schedule := defaultSweepSchedule
	if cfg.Monitor != nil && cfg.Monitor.SweepSchedule != "" {
		schedule = cfg.Monitor.SweepSchedule
	}
	if _, err := sweeper.AddFunc(schedule, func() {
		res, err := mon.Sweep(context.Background())
		if err != nil {
			logger.Error("history sweep failed", "error", err)
			return
		}
		if res.Pruned > 0 || res.AutoResolved > 0 {
			logger.Info("history sweep complete",
				"pruned", res.Pruned,
				"autoResolved", res.AutoResolved)
		}
	}); err != nil {
		return fmt.Errorf("scheduling sweep %q: %w", schedule, err)
	}
	sweeper.Start()

	addr := ":8080"
	var apiKey string
	var maxBody int64
	if cfg.Server != nil {
		if cfg.Server.Addr != "" {
			addr = cfg.Server.Addr
		}
		apiKey = cfg.Server.APIKey
		maxBody = cfg.Server.MaxRequestBody
	}
	srv := server.New(addr, exec, store, mon, calc, reg, apiKey, maxBody)

	if len(dispatcher.Sinks()) > 0 {
		logger.Info("alert sinks ready", "sinks", dispatcher.Sinks())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		color.Yellow("\nReceived %s, shutting down...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		<-sweeper.Stop().Done()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		if err := store.Stop(shutdownCtx); err != nil {
			logger.Warn("store shutdown", "error", err)
		}
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
		color.Green("Server stopped gracefully")
		return nil
	}
}

// storeName names the effective store, mapping the empty default to memory.
func storeName(store string) string {
	if store == "" {
		return config.StoreMemory
	}
	return store
}
