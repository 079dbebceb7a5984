package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/citysort/citysort/internal/bootstrap"
	"github.com/citysort/citysort/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if app.Worker == nil {
		log.Fatal("worker is disabled; set CITYSORT_WORKER_ENABLED=true")
	}

	var metricsServer *http.Server
	if app.Metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.Metrics.Handler())
		metricsServer = &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	if err := app.Worker.Start(ctx); err != nil {
		log.Fatalf("worker start error: %v", err)
	}
	log.Printf("worker %s started, polling every %s", app.Worker.ID(), cfg.WorkerPollInterval)

	<-ctx.Done()

	app.Worker.Stop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
}
