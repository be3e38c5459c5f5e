package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/docpipe/internal/bootstrap"
	"github.com/kirillkom/docpipe/internal/config"
	"github.com/kirillkom/docpipe/internal/observability/logging"
)

const serviceName = "docpipe-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.Metrics.Handler())
		server := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: mux}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentLoaded(ctx, func(handlerCtx context.Context, documentID string) error {
		started := time.Now()
		app.Metrics.JobStarted()

		processCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()

		processErr := app.ProcessUC.ProcessByID(processCtx, documentID)
		status := "ok"
		if processErr != nil {
			status = "error"
		}
		app.Metrics.JobFinished(serviceName, status, started)
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
