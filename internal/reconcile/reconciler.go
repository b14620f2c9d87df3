package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/spark-analytics/internal/event"
)

// Outcome reports how an apply attempt resolved. Duplicates are informational,
// never errors: at-least-once delivery makes them an expected case.
type Outcome string

const (
	// OutcomeApplied means the event changed stored state.
	OutcomeApplied Outcome = "applied"

	// OutcomeDuplicate means the event was already reflected in stored state,
	// either via a ledger hit or because the merge resolved it to a no-op.
	OutcomeDuplicate Outcome = "duplicate"
)

// Reconciler folds classified events into per-job state. Applying the same
// event any number of times, in any interleaving with other events for the
// same job, converges to the same final record.
type Reconciler struct {
	store  Store
	logger *slog.Logger
}

func NewReconciler(store Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger,
	}
}

// Apply merges one event into its job's record. The whole merge, including the
// idempotency mark, commits atomically; a failure leaves state untouched so a
// redelivery can retry safely.
func (r *Reconciler) Apply(ctx context.Context, ev event.Event) (Outcome, error) {
	applied, err := r.store.HasApplied(ctx, ev.Fingerprint())
	if err != nil {
		return "", fmt.Errorf("idempotency check: %w", err)
	}
	if applied {
		r.logger.Debug("duplicate delivery, ledger hit",
			slog.String("kind", string(ev.Kind())),
			slog.Int64("job_id", ev.JobID()),
		)
		return OutcomeDuplicate, nil
	}

	outcome := OutcomeDuplicate
	err = r.store.WithJob(ctx, ev.JobID(), func(tx JobTx) error {
		changed, err := r.merge(tx, ev)
		if err != nil {
			return err
		}
		if changed {
			outcome = OutcomeApplied
		}
		return tx.MarkApplied(ev.Fingerprint())
	})
	if err != nil {
		return "", err
	}

	return outcome, nil
}

func (r *Reconciler) merge(tx JobTx, ev event.Event) (changed bool, err error) {
	switch e := ev.(type) {
	case event.JobStart:
		return r.mergeJob(tx, MergeJobStart(tx.Job(), e), e)

	case event.JobEnd:
		return r.mergeJob(tx, MergeJobEnd(tx.Job(), e), e)

	case event.TaskEnd:
		if e.DurationMS < 0 {
			return false, fmt.Errorf("%w: negative duration_ms %d", event.ErrInvalidEventData, e.DurationMS)
		}
		inserted, err := tx.InsertTask(TaskRecord{
			JobID:      e.Job,
			TaskID:     e.TaskID,
			DurationMS: e.DurationMS,
			Successful: e.Successful,
			ObservedAt: e.Timestamp,
		})
		if err != nil {
			return false, err
		}
		if !inserted {
			// Redelivery of a known task: first-applied content is kept.
			r.logger.Debug("task already recorded, keeping first-applied content",
				slog.Int64("job_id", e.Job),
				slog.String("task_id", e.TaskID),
			)
		}
		return inserted, nil

	default:
		return false, fmt.Errorf("%w: %T", event.ErrUnrecognizedEventKind, ev)
	}
}

func (r *Reconciler) mergeJob(tx JobTx, res MergeResult, ev event.Event) (bool, error) {
	if res.Anomaly {
		// Same timestamp, different content: keep the first-applied value and
		// make the collision visible instead of swallowing it.
		r.logger.Warn("conflicting merge anomaly, keeping first-applied value",
			slog.String("kind", string(ev.Kind())),
			slog.Int64("job_id", ev.JobID()),
		)
	}
	if !res.Changed {
		return false, nil
	}
	if err := tx.UpdateJob(tx.Job()); err != nil {
		return false, err
	}
	return true, nil
}
