// Package main provides the CVE tracker command: one harvest, aggregate and report run.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"cvetracker/internal/config"
	"cvetracker/internal/logger"
	"cvetracker/internal/telemetry"
	"cvetracker/internal/tracker"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Configuration
	// ----------------
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)

			return 0
		}

		fmt.Fprintf(os.Stderr, "❌ Invalid configuration: %v\n", err)

		return 1
	}

	log := logger.NewLoggerWithWriter(os.Stderr, cfg.Tracker.Logging.Level, cfg.Tracker.Logging.Format)
	log.Debug("Loaded configuration", "config", cfg.String())

	// 2. Telemetry
	// ------------
	shutdown, err := telemetry.InitTracer(cfg.Features.EnableTracing, os.Stdout)
	if err != nil {
		log.Warn("⚠️  Tracing disabled", "error", err)

		shutdown = func(context.Context) error { return nil }
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if shutdownErr := shutdown(ctx); shutdownErr != nil {
			log.Warn("⚠️  Tracer shutdown failed", "error", shutdownErr)
		}
	}()

	metrics := telemetry.NewMetrics()

	// 3. Run
	// ------
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	summary := tracker.New(cfg, log, metrics).Run(ctx)

	for _, failure := range summary.Failures {
		log.Warn("⚠️  Query failed", "keyword", failure.Keyword, "error", failure.Err)
	}

	if summary.InterruptErr != nil {
		log.Warn("⚠️  Run interrupted", "run_id", summary.RunID, "duration", time.Since(startTime))

		return 0
	}

	if !summary.OK() {
		log.Warn("⚠️  Run finished with write failures", "run_id", summary.RunID, "duration", time.Since(startTime))

		return 0
	}

	log.Info("🎉 Done", "run_id", summary.RunID, "duration", time.Since(startTime))

	return 0
}
