// Command logflowd is the ingest core daemon: it loads configuration,
// brings up the Configuration Store, Template Store, Processor Pool
// manager, Listener Multiplexer, and control API, then blocks until an
// interrupt or terminate signal triggers a graceful drain and shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/telhawk-systems/logflow/internal/config"
	"github.com/telhawk-systems/logflow/internal/control"
	"github.com/telhawk-systems/logflow/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).
		With(slog.String("service", "logflowd"))
	logging.SetDefault(logger)

	logger.Info("starting logflowd",
		slog.String("control_addr", cfg.Control.ListenAddr),
		slog.String("data_dir", cfg.Runtime.DataDir),
	)

	fs := afero.NewOsFs()
	plane, err := control.New(fs, cfg.Runtime.DataDir, logger.Logger)
	if err != nil {
		logger.Error("failed to initialize control plane", slog.Any("error", err))
		return 1
	}

	if err := plane.Start(); err != nil {
		logger.Error("failed to start control plane", slog.Any("error", err))
		return 1
	}

	handlers := control.NewHandlers(plane)
	router := control.NewRouter(handlers)

	srv := &http.Server{
		Addr:         cfg.Control.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Control.ReadTimeout,
		WriteTimeout: cfg.Control.WriteTimeout,
		IdleTimeout:  cfg.Control.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("control API listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("control API failed to bind", slog.Any("error", err))
		return 2
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Runtime.DrainDeadline)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("control API shutdown did not complete cleanly", slog.Any("error", err))
	}

	if err := plane.Stop(shutdownCtx); err != nil {
		logger.Error("error during drain", slog.Any("error", err))
		return 1
	}

	logger.Info("logflowd stopped")
	return 0
}
