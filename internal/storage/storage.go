// Package storage is the PostgreSQL implementation of the reconciliation
// store and the analytics read side. Job and task rows are written only
// through the reconcile transaction; everything else is read-only.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/spark-analytics/internal/event"
	"github.com/cuongbtq/spark-analytics/internal/reconcile"
)

// Storage handles all database operations for reconciliation and analytics
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

type jobRow struct {
	JobID     int64          `db:"job_id"`
	User      sql.NullString `db:"user_name"`
	StartTime sql.NullTime   `db:"start_time"`
	EndTime   sql.NullTime   `db:"end_time"`
	Result    string         `db:"result"`
}

func (r jobRow) toDomain() reconcile.Job {
	job := reconcile.Job{
		JobID:  r.JobID,
		Result: event.Result(r.Result),
	}
	if r.User.Valid {
		job.User = r.User.String
	}
	if r.StartTime.Valid {
		ts := r.StartTime.Time.UTC()
		job.StartTime = &ts
	}
	if r.EndTime.Valid {
		ts := r.EndTime.Time.UTC()
		job.EndTime = &ts
	}
	return job
}

// HasApplied reports whether an event fingerprint is in the idempotency ledger
func (s *Storage) HasApplied(ctx context.Context, fingerprint string) (bool, error) {
	var applied bool
	query := `SELECT EXISTS (SELECT 1 FROM idempotency_records WHERE fingerprint = $1)`

	if err := s.db.GetContext(ctx, &applied, query, fingerprint); err != nil {
		return false, fmt.Errorf("%w: idempotency lookup: %v", reconcile.ErrStorageUnavailable, err)
	}

	return applied, nil
}

// WithJob runs fn inside one transaction holding a row lock on the job. The
// row is materialized first so that any event kind can arrive first; two
// concurrent applies for the same job_id serialize on the lock, which is the
// minimal scope the merge rules need.
func (s *Storage) WithJob(ctx context.Context, jobID int64, fn func(tx reconcile.JobTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", reconcile.ErrStorageUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs (job_id) VALUES ($1) ON CONFLICT (job_id) DO NOTHING`, jobID)
	if err != nil {
		return fmt.Errorf("%w: materialize job %d: %v", reconcile.ErrStorageUnavailable, jobID, err)
	}

	var row jobRow
	err = tx.GetContext(ctx, &row,
		`SELECT job_id, user_name, start_time, end_time, result FROM jobs WHERE job_id = $1 FOR UPDATE`, jobID)
	if err != nil {
		return fmt.Errorf("%w: lock job %d: %v", reconcile.ErrStorageUnavailable, jobID, err)
	}

	job := row.toDomain()
	jtx := &jobTx{ctx: ctx, tx: tx, job: &job}

	if err := fn(jtx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit job %d: %v", reconcile.ErrStorageUnavailable, jobID, err)
	}

	return nil
}

// jobTx is the mutation scope for one job inside an open transaction
type jobTx struct {
	ctx context.Context
	tx  *sqlx.Tx
	job *reconcile.Job
}

func (t *jobTx) Job() *reconcile.Job {
	return t.job
}

func (t *jobTx) UpdateJob(job *reconcile.Job) error {
	query := `
		UPDATE jobs
		SET user_name = $2,
		    start_time = $3,
		    end_time = $4,
		    result = $5,
		    updated_at = NOW()
		WHERE job_id = $1
	`

	var user sql.NullString
	if job.User != "" {
		user = sql.NullString{String: job.User, Valid: true}
	}

	_, err := t.tx.ExecContext(t.ctx, query,
		job.JobID, user, nullableTime(job.StartTime), nullableTime(job.EndTime), string(job.Result))
	if err != nil {
		return fmt.Errorf("%w: update job %d: %v", reconcile.ErrStorageUnavailable, job.JobID, err)
	}

	return nil
}

func (t *jobTx) InsertTask(task reconcile.TaskRecord) (bool, error) {
	query := `
		INSERT INTO task_events (job_id, task_id, duration_ms, successful, observed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, task_id) DO NOTHING
	`

	res, err := t.tx.ExecContext(t.ctx, query,
		task.JobID, task.TaskID, task.DurationMS, task.Successful, task.ObservedAt)
	if err != nil {
		return false, fmt.Errorf("%w: insert task %s/%d: %v", reconcile.ErrStorageUnavailable, task.TaskID, task.JobID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", reconcile.ErrStorageUnavailable, err)
	}

	return affected == 1, nil
}

func (t *jobTx) MarkApplied(fingerprint string) error {
	query := `
		INSERT INTO idempotency_records (fingerprint)
		VALUES ($1)
		ON CONFLICT (fingerprint) DO NOTHING
	`

	if _, err := t.tx.ExecContext(t.ctx, query, fingerprint); err != nil {
		return fmt.Errorf("%w: mark applied: %v", reconcile.ErrStorageUnavailable, err)
	}

	return nil
}

// GetJob returns the reconciled record for a job
func (s *Storage) GetJob(ctx context.Context, jobID int64) (*reconcile.Job, error) {
	var row jobRow
	query := `SELECT job_id, user_name, start_time, end_time, result FROM jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &row, query, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, reconcile.ErrJobNotFound
		}
		return nil, fmt.Errorf("%w: get job %d: %v", reconcile.ErrStorageUnavailable, jobID, err)
	}

	job := row.toDomain()
	return &job, nil
}

// TaskCounts returns the total and failed task counts for a job
func (s *Storage) TaskCounts(ctx context.Context, jobID int64) (total, failed int, err error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE NOT successful) AS failed
		FROM task_events
		WHERE job_id = $1
	`

	var counts struct {
		Total  int `db:"total"`
		Failed int `db:"failed"`
	}
	if err := s.db.GetContext(ctx, &counts, query, jobID); err != nil {
		return 0, 0, fmt.Errorf("%w: task counts for job %d: %v", reconcile.ErrStorageUnavailable, jobID, err)
	}

	return counts.Total, counts.Failed, nil
}

// ListJobsStartedBetween returns jobs whose start_time falls in [from, to),
// backed by the start_time index rather than a full scan.
func (s *Storage) ListJobsStartedBetween(ctx context.Context, from, to time.Time) ([]reconcile.Job, error) {
	query := `
		SELECT job_id, user_name, start_time, end_time, result
		FROM jobs
		WHERE start_time >= $1 AND start_time < $2
		ORDER BY start_time ASC, job_id ASC
	`

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("%w: list jobs by date: %v", reconcile.ErrStorageUnavailable, err)
	}

	jobs := make([]reconcile.Job, len(rows))
	for i, row := range rows {
		jobs[i] = row.toDomain()
	}

	return jobs, nil
}

// JobFilter narrows the job listing
type JobFilter struct {
	Result   string
	User     string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is a keyset-pagination position over job_id descending
type JobCursor struct {
	JobID int64
}

// ListJobs returns up to PageSize+1 jobs matching the filter, newest job_id
// first. The extra row lets the caller detect whether more pages exist.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]reconcile.Job, error) {
	query := `
		SELECT job_id, user_name, start_time, end_time, result
		FROM jobs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.Result != "" {
		query += fmt.Sprintf(" AND result = $%d", argIdx)
		args = append(args, filter.Result)
		argIdx++
	}

	if filter.User != "" {
		query += fmt.Sprintf(" AND user_name = $%d", argIdx)
		args = append(args, filter.User)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND job_id < $%d", argIdx)
		args = append(args, filter.Cursor.JobID)
		argIdx++
	}

	query += " ORDER BY job_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", reconcile.ErrStorageUnavailable, err)
	}

	jobs := make([]reconcile.Job, len(rows))
	for i, row := range rows {
		jobs[i] = row.toDomain()
	}

	return jobs, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
