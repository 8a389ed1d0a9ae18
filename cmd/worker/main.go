package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medsync/medsync-server/internal/bootstrap"
	"github.com/medsync/medsync-server/internal/config"
	"github.com/medsync/medsync-server/internal/observability/logging"
	"github.com/medsync/medsync-server/internal/observability/metrics"
)

const serviceName = "medsync-worker"

type metricsObserver struct {
	workerMetrics *metrics.WorkerMetrics
}

func (o metricsObserver) StartItem() {
	o.workerMetrics.StartItem()
}

func (o metricsObserver) FinishItem(duration time.Duration, err error) {
	o.workerMetrics.FinishItem(serviceName, duration, err)
}

func (o metricsObserver) ObserveBatch(size, errorCount int) {
	o.workerMetrics.ObserveBatch(serviceName, size, errorCount)
}

func (o metricsObserver) ObserveQueueLag(lag time.Duration) {
	o.workerMetrics.ObserveQueueLag(serviceName, lag)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app.Batches.SetObserver(metricsObserver{workerMetrics: workerMetrics})

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker_metrics_listening", slog.String("port", cfg.WorkerMetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", slog.String("subject", cfg.NATSSubject))
	err = app.Queue.SubscribeBatchSubmitted(ctx, func(handlerCtx context.Context, batchID string) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Minute)
		defer cancel()
		return app.Batches.Run(runCtx, batchID)
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
