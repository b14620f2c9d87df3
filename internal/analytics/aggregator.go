package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongbtq/spark-analytics/internal/reconcile"
)

// Reader is the read-only view of reconciled state the aggregator needs. The
// aggregator never mutates; it is safe to run concurrently with reconciliation.
type Reader interface {
	GetJob(ctx context.Context, jobID int64) (*reconcile.Job, error)
	TaskCounts(ctx context.Context, jobID int64) (total, failed int, err error)

	// ListJobsStartedBetween returns jobs whose start_time falls in [from, to).
	ListJobsStartedBetween(ctx context.Context, from, to time.Time) ([]reconcile.Job, error)
}

// Aggregator derives per-job and per-date summaries from reconciled state.
type Aggregator struct {
	reader Reader
}

func NewAggregator(reader Reader) *Aggregator {
	return &Aggregator{reader: reader}
}

// JobSummary computes the analytics payload for one job. Incomplete jobs
// (missing start or end) report a processing status with no duration; task
// counts are reported either way.
func (a *Aggregator) JobSummary(ctx context.Context, jobID int64) (*JobSummary, error) {
	job, err := a.reader.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return a.summarize(ctx, job)
}

// DailySummary computes the fleet payload for one UTC calendar day, selected
// by start_time. Jobs still processing are excluded entirely, not counted as
// zero, so a half-arrived job never drags the averages.
func (a *Aggregator) DailySummary(ctx context.Context, date time.Time) (*DailySummary, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	jobs, err := a.reader.ListJobsStartedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	summaries := make([]JobSummary, 0, len(jobs))
	for i := range jobs {
		if !jobs[i].Completed() {
			continue
		}
		s, err := a.summarize(ctx, &jobs[i])
		if err != nil {
			return nil, fmt.Errorf("summarize job %d: %w", jobs[i].JobID, err)
		}
		summaries = append(summaries, *s)
	}

	return &DailySummary{
		Date:    from.Format("2006-01-02"),
		Summary: fleetSummary(summaries),
		Jobs:    summaries,
	}, nil
}

func (a *Aggregator) summarize(ctx context.Context, job *reconcile.Job) (*JobSummary, error) {
	total, failed, err := a.reader.TaskCounts(ctx, job.JobID)
	if err != nil {
		return nil, fmt.Errorf("task counts for job %d: %w", job.JobID, err)
	}

	s := &JobSummary{
		JobID:       job.JobID,
		User:        job.User,
		StartTime:   job.StartTime,
		EndTime:     job.EndTime,
		Status:      statusOf(job.Result, job.Completed()),
		TotalTasks:  total,
		FailedTasks: failed,
		SuccessRate: successRate(total, failed),
	}

	if job.Completed() {
		d := int64(job.EndTime.Sub(*job.StartTime) / time.Second)
		s.DurationSeconds = &d
	}

	return s, nil
}

// successRate is (total-failed)/total as a fraction, defined as 0.0 for jobs
// with no tasks so the division never faults.
func successRate(total, failed int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(total-failed) / float64(total)
}

// fleetSummary folds per-job summaries into day-level aggregates. The success
// rate average is an unweighted mean of per-job rates, not weighted by task
// count.
func fleetSummary(jobs []JobSummary) FleetSummary {
	fs := FleetSummary{TotalJobs: len(jobs)}
	if len(jobs) == 0 {
		return fs
	}

	var rateSum, durationSum float64
	for _, j := range jobs {
		fs.TotalTasks += j.TotalTasks
		fs.FailedTasks += j.FailedTasks
		rateSum += j.SuccessRate
		if j.DurationSeconds != nil {
			durationSum += float64(*j.DurationSeconds)
		}
	}

	fs.AvgSuccessRate = rateSum / float64(len(jobs))
	fs.AvgDurationSeconds = durationSum / float64(len(jobs))
	return fs
}
