package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/cuongbtq/spark-analytics/internal/event"
	"github.com/cuongbtq/spark-analytics/internal/reconcile"
	"github.com/cuongbtq/spark-analytics/internal/worker/domain"
)

// processEvent reconciles a single submitted event and records the outcome on
// its tracking handle. Returning a RetryableError triggers a NACK with
// requeue; any other error NACKs without requeue.
func (w *Worker) processEvent(ctx context.Context, msg *domain.EventMessage) error {
	w.logger.Info("Processing event",
		slog.String("tracking_id", msg.TrackingID),
		slog.String("worker_id", w.workerID),
	)

	// Step 1: Classify the raw envelope. The API pre-filters, but the worker
	// classification is authoritative: a failure here is final, so the handle
	// is failed and the message is not requeued.
	ev, err := event.Classify(msg.Payload)
	if err != nil {
		w.logger.Error("Event classification failed",
			slog.String("tracking_id", msg.TrackingID),
			slog.String("error", err.Error()),
		)
		w.failHandle(ctx, msg.TrackingID, err)
		return fmt.Errorf("classification failed: %w", err)
	}

	// Step 2: Apply the event, retrying transient storage failures with
	// exponential backoff before giving the message back to the queue.
	outcome, err := w.applyWithRetry(ctx, ev)
	if err != nil {
		if errors.Is(err, reconcile.ErrStorageUnavailable) {
			// Handle stays processing; redelivery will retry and the
			// idempotent merge makes that safe.
			w.logger.Warn("Storage unavailable, requeueing event",
				slog.String("tracking_id", msg.TrackingID),
				slog.Int64("job_id", ev.JobID()),
				slog.String("error", err.Error()),
			)
			return domain.NewRetryableError(err)
		}

		w.logger.Error("Reconciliation failed",
			slog.String("tracking_id", msg.TrackingID),
			slog.Int64("job_id", ev.JobID()),
			slog.String("error", err.Error()),
		)
		w.failHandle(ctx, msg.TrackingID, err)
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	w.logger.Info("Event reconciled",
		slog.String("tracking_id", msg.TrackingID),
		slog.Int64("job_id", ev.JobID()),
		slog.String("kind", string(ev.Kind())),
		slog.String("outcome", string(outcome)),
	)

	// Step 3: Mark the handle succeeded with the job's current summary.
	result := w.buildResult(ctx, ev, outcome)
	if err := w.tracking.Succeed(ctx, msg.TrackingID, result); err != nil {
		// The merge is committed; a redelivery would be a clean duplicate, so
		// ACK anyway rather than reprocess just to rewrite the handle.
		w.logger.Error("Failed to mark tracking handle succeeded",
			slog.String("tracking_id", msg.TrackingID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// applyWithRetry runs the reconciler, retrying only transient storage errors
func (w *Worker) applyWithRetry(ctx context.Context, ev event.Event) (reconcile.Outcome, error) {
	var outcome reconcile.Outcome

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 100 * time.Millisecond
	expBackoff.MaxElapsedTime = 15 * time.Second

	operation := func() error {
		var err error
		outcome, err = w.reconciler.Apply(ctx, ev)
		if err == nil {
			return nil
		}
		if errors.Is(err, reconcile.ErrStorageUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return "", err
	}

	return outcome, nil
}

// buildResult assembles the tracking handle's result payload: the job summary
// when it is computable, otherwise a minimal outcome record.
func (w *Worker) buildResult(ctx context.Context, ev event.Event, outcome reconcile.Outcome) json.RawMessage {
	summary, err := w.aggregator.JobSummary(ctx, ev.JobID())
	if err != nil {
		w.logger.Warn("Failed to compute job summary for tracking result",
			slog.Int64("job_id", ev.JobID()),
			slog.String("error", err.Error()),
		)
		fallback, _ := json.Marshal(map[string]interface{}{
			"job_id":  ev.JobID(),
			"outcome": string(outcome),
		})
		return fallback
	}

	data, err := json.Marshal(summary)
	if err != nil {
		w.logger.Error("Failed to encode job summary",
			slog.Int64("job_id", ev.JobID()),
			slog.String("error", err.Error()),
		)
		return json.RawMessage(`{}`)
	}

	return data
}

// failHandle records a terminal failure with the error kind as reason
func (w *Worker) failHandle(ctx context.Context, trackingID string, cause error) {
	if err := w.tracking.Fail(ctx, trackingID, errorKind(cause)); err != nil {
		w.logger.Error("Failed to mark tracking handle failed",
			slog.String("tracking_id", trackingID),
			slog.String("error", err.Error()),
		)
	}
}

// errorKind maps an error to its taxonomy name for client-visible reasons
func errorKind(err error) string {
	switch {
	case errors.Is(err, event.ErrUnrecognizedEventKind):
		return "UnrecognizedEventKind"
	case errors.Is(err, event.ErrMalformedEvent):
		return "MalformedEvent"
	case errors.Is(err, event.ErrInvalidEventData):
		return "InvalidEventData"
	case errors.Is(err, reconcile.ErrStorageUnavailable):
		return "StorageUnavailable"
	default:
		return "InternalError"
	}
}
