package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eduverify/internal/app"
	"eduverify/internal/platform/config"
	"eduverify/internal/platform/logger"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the certificate service.
func main() {
	cfgFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	v, err := config.NewViper(*cfgFile)
	if err != nil {
		slog.Error("failed to read configuration", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(v)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to release resources", "error", err)
		}
	}()

	if err := a.Serve(ctx); err != nil {
		log.Error("server error", "error", err)
		stop()
		_ = a.Close()
		os.Exit(1)
	}
}
