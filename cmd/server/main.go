package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quhie/Coding-Challenge-Skipli/internal/config"
	"github.com/quhie/Coding-Challenge-Skipli/internal/errorreporting"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/server"
	"github.com/quhie/Coding-Challenge-Skipli/internal/tracing"
)

// flushReports is swapped in tests.
var flushReports = errorreporting.Flush

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (falling back to system env)")
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg)
	stop()
	os.Exit(code)
}

// run owns every deferred teardown so they complete before main exits.
func run(ctx context.Context, cfg *config.Config) int {
	if err := errorreporting.Init(errorreporting.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		Production:  cfg.IsProduction(),
	}); err != nil {
		logger.Warn("Sentry init failed", "error", err)
	}
	defer flushReports(2 * time.Second)

	shutdownTracing, err := tracing.Init(tracing.Options{
		Enabled:     cfg.OTELEnabled,
		ServiceName: "github-auth-api",
		Version:     cfg.ServiceVersion,
		Endpoint:    cfg.OTELEndpoint,
		SampleRate:  cfg.OTELSampleRate,
	})
	if err != nil {
		logger.Warn("Tracing init failed", "error", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				logger.Warn("Tracing shutdown failed", "error", err)
			}
		}()
	}

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logger.Error("Server init failed", "error", err)
		errorreporting.CaptureError(err)
		return 1
	}
	if err := srv.Run(ctx); err != nil {
		logger.Error("Server exited", "error", err)
		errorreporting.CaptureError(err)
		return 1
	}
	return 0
}
