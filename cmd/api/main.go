package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shipportal/internal/api"
	"shipportal/internal/buildinfo"
	"shipportal/internal/config"
	"shipportal/internal/logging"
	"shipportal/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	metrics.RegisterDefault()

	srvDeps, err := api.NewServer(cfg, log)
	if err != nil {
		log.Fatal("failed to init server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := srvDeps.NewWebhookWorker()
	worker.Start()
	go srvDeps.RunMaintenance(ctx, time.Minute)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srvDeps.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("API listening", zap.String("addr", srv.Addr), zap.String("version", buildinfo.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	worker.Stop()
	if err := srvDeps.Close(); err != nil {
		log.Warn("close", zap.Error(err))
	}
}
