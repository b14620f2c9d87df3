package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/spark-analytics/internal/analytics"
	"github.com/cuongbtq/spark-analytics/internal/reconcile"
	"github.com/cuongbtq/spark-analytics/internal/tracking"
	"github.com/cuongbtq/spark-analytics/internal/worker/domain"
	"github.com/cuongbtq/spark-analytics/shared/rabbitmq"
)

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Reconciler    *reconcile.Reconciler
	Aggregator    *analytics.Aggregator
	Tracking      tracking.Store
	Concurrency   int
	PrefetchCount int
	QueueName     string
}

// Worker consumes event submissions from RabbitMQ and runs reconciliation on
// a pool of goroutines. Each event is one bounded unit of work; redelivery is
// always safe because the merge is idempotent, so no claim step is needed.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	reconciler    *reconcile.Reconciler
	aggregator    *analytics.Aggregator
	tracking      tracking.Store
	concurrency   int
	prefetchCount int
	queueName     string
	workerID      string
	eventsChan    chan *domain.EventMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		reconciler:    cfg.Reconciler,
		aggregator:    cfg.Aggregator,
		tracking:      cfg.Tracking,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		queueName:     cfg.QueueName,
		workerID:      fmt.Sprintf("event-worker-%d", time.Now().UnixNano()),
		eventsChan:    make(chan *domain.EventMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and reconciling events until the context is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Int("prefetch_count", w.prefetchCount),
		slog.String("worker_id", w.workerID),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.startMessageDispatcher(gctx, deliveries)
		return nil
	})

	g.Go(func() error {
		w.monitorBroker(gctx)
		return nil
	})

	return g.Wait()
}

// Stop gracefully stops the worker pool
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// monitorBroker periodically checks the broker connection so an outage shows
// up in the logs before the delivery channel closes.
func (w *Worker) monitorBroker(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.rabbitClient.IsConnected() {
				w.logger.Warn("RabbitMQ connection lost",
					slog.String("worker_id", w.workerID),
				)
			}
		}
	}
}
