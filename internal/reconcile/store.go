package reconcile

import (
	"context"
	"errors"
)

var (
	// ErrStorageUnavailable wraps transient storage failures. The execution
	// boundary retries these with backoff instead of surfacing them.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrJobNotFound is returned by read paths when no event for the job_id
	// has ever been reconciled
	ErrJobNotFound = errors.New("job not found")
)

// Store is the persistence contract the reconciler needs. The domain owns the
// interface; concrete implementations (PostgreSQL, in-memory) live elsewhere.
type Store interface {
	// HasApplied reports whether an event fingerprint was already committed.
	// It is the fast path only: the merge rules remain the safety net, so a
	// false negative here is harmless.
	HasApplied(ctx context.Context, fingerprint string) (bool, error)

	// WithJob runs fn with exclusive access to the job's state. The job record
	// is materialized if it does not exist yet. All mutations made through the
	// JobTx commit atomically iff fn returns nil, otherwise nothing is written.
	WithJob(ctx context.Context, jobID int64, fn func(tx JobTx) error) error
}

// JobTx is the mutation scope handed to the reconciler for one job. Two
// concurrent applies for the same job_id never hold a JobTx at the same time.
type JobTx interface {
	// Job returns the current record. Never nil.
	Job() *Job

	// UpdateJob stages the merged record.
	UpdateJob(job *Job) error

	// InsertTask stages a task outcome. Returns false without staging anything
	// when a record for (job_id, task_id) already exists; the first-applied
	// content always wins.
	InsertTask(task TaskRecord) (bool, error)

	// MarkApplied stages the fingerprint in the idempotency ledger. Committed
	// together with the merge, never before it.
	MarkApplied(fingerprint string) error
}
