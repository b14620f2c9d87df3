package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/spark-analytics/internal/event"
	"github.com/cuongbtq/spark-analytics/internal/reconcile"
)

type taskCount struct {
	total  int
	failed int
}

// fakeReader serves canned reconciled state.
type fakeReader struct {
	jobs   map[int64]reconcile.Job
	counts map[int64]taskCount
}

func (r *fakeReader) GetJob(_ context.Context, jobID int64) (*reconcile.Job, error) {
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, reconcile.ErrJobNotFound
	}
	return &job, nil
}

func (r *fakeReader) TaskCounts(_ context.Context, jobID int64) (int, int, error) {
	c := r.counts[jobID]
	return c.total, c.failed, nil
}

func (r *fakeReader) ListJobsStartedBetween(_ context.Context, from, to time.Time) ([]reconcile.Job, error) {
	var out []reconcile.Job
	for _, job := range r.jobs {
		if job.StartTime == nil {
			continue
		}
		if !job.StartTime.Before(from) && job.StartTime.Before(to) {
			out = append(out, job)
		}
	}
	return out, nil
}

func ts(day, hour, min int) *time.Time {
	t := time.Date(2024, 3, day, hour, min, 0, 0, time.UTC)
	return &t
}

func TestAggregator_JobSummary_Completed(t *testing.T) {
	reader := &fakeReader{
		jobs: map[int64]reconcile.Job{
			42: {JobID: 42, User: "alice", StartTime: ts(1, 10, 0), EndTime: ts(1, 10, 30), Result: event.ResultSucceeded},
		},
		counts: map[int64]taskCount{
			42: {total: 10, failed: 2},
		},
	}
	agg := NewAggregator(reader)

	s, err := agg.JobSummary(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), s.JobID)
	assert.Equal(t, "alice", s.User)
	assert.Equal(t, StatusSuccess, s.Status)
	assert.Equal(t, 10, s.TotalTasks)
	assert.Equal(t, 2, s.FailedTasks)
	assert.InDelta(t, 0.8, s.SuccessRate, 1e-9)
	require.NotNil(t, s.DurationSeconds)
	assert.Equal(t, int64(1800), *s.DurationSeconds)
	assert.False(t, s.Pending())
}

func TestAggregator_JobSummary_FailedJob(t *testing.T) {
	reader := &fakeReader{
		jobs: map[int64]reconcile.Job{
			7: {JobID: 7, StartTime: ts(1, 9, 0), EndTime: ts(1, 9, 5), Result: event.ResultFailed},
		},
		counts: map[int64]taskCount{
			7: {total: 4, failed: 4},
		},
	}
	agg := NewAggregator(reader)

	s, err := agg.JobSummary(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, StatusFailure, s.Status)
	assert.Equal(t, 0.0, s.SuccessRate)
}

func TestAggregator_JobSummary_Processing(t *testing.T) {
	tests := []struct {
		name string
		job  reconcile.Job
	}{
		{
			name: "start only",
			job:  reconcile.Job{JobID: 1, StartTime: ts(1, 10, 0), Result: event.ResultUnknown},
		},
		{
			name: "end only",
			job:  reconcile.Job{JobID: 1, EndTime: ts(1, 11, 0), Result: event.ResultSucceeded},
		},
		{
			name: "tasks only",
			job:  reconcile.Job{JobID: 1, Result: event.ResultUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeReader{
				jobs:   map[int64]reconcile.Job{1: tt.job},
				counts: map[int64]taskCount{1: {total: 3, failed: 1}},
			}
			agg := NewAggregator(reader)

			s, err := agg.JobSummary(context.Background(), 1)
			require.NoError(t, err)

			assert.Equal(t, StatusProcessing, s.Status)
			assert.True(t, s.Pending())
			assert.Nil(t, s.DurationSeconds)
			// Task counts are reported even while processing
			assert.Equal(t, 3, s.TotalTasks)
		})
	}
}

func TestAggregator_JobSummary_NotFound(t *testing.T) {
	agg := NewAggregator(&fakeReader{jobs: map[int64]reconcile.Job{}})

	s, err := agg.JobSummary(context.Background(), 99)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, reconcile.ErrJobNotFound)
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name   string
		total  int
		failed int
		want   float64
	}{
		{name: "no tasks is zero, not NaN", total: 0, failed: 0, want: 0.0},
		{name: "all succeeded", total: 5, failed: 0, want: 1.0},
		{name: "all failed", total: 5, failed: 5, want: 0.0},
		{name: "partial", total: 4, failed: 1, want: 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := successRate(tt.total, tt.failed)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.False(t, got != got, "success rate must never be NaN")
		})
	}
}

func TestAggregator_DailySummary(t *testing.T) {
	reader := &fakeReader{
		jobs: map[int64]reconcile.Job{
			// 1.0 success rate, 600s
			1: {JobID: 1, StartTime: ts(1, 8, 0), EndTime: ts(1, 8, 10), Result: event.ResultSucceeded},
			// 0.0 success rate, 1200s
			2: {JobID: 2, StartTime: ts(1, 9, 0), EndTime: ts(1, 9, 20), Result: event.ResultFailed},
		},
		counts: map[int64]taskCount{
			1: {total: 4, failed: 0},
			2: {total: 2, failed: 2},
		},
	}
	agg := NewAggregator(reader)

	ds, err := agg.DailySummary(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01", ds.Date)
	assert.Equal(t, 2, ds.Summary.TotalJobs)
	assert.Equal(t, 6, ds.Summary.TotalTasks)
	assert.Equal(t, 2, ds.Summary.FailedTasks)
	// Unweighted mean of 1.0 and 0.0, not 4/6
	assert.InDelta(t, 0.5, ds.Summary.AvgSuccessRate, 1e-9)
	assert.InDelta(t, 900.0, ds.Summary.AvgDurationSeconds, 1e-9)
	assert.Len(t, ds.Jobs, 2)
}

func TestAggregator_DailySummary_ExcludesIncompleteJobs(t *testing.T) {
	reader := &fakeReader{
		jobs: map[int64]reconcile.Job{
			1: {JobID: 1, StartTime: ts(1, 8, 0), EndTime: ts(1, 8, 10), Result: event.ResultSucceeded},
			// Started the same day but never finished: must not appear at all
			2: {JobID: 2, StartTime: ts(1, 9, 0), Result: event.ResultUnknown},
		},
		counts: map[int64]taskCount{
			1: {total: 4, failed: 2},
			2: {total: 50, failed: 50},
		},
	}
	agg := NewAggregator(reader)

	ds, err := agg.DailySummary(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 1, ds.Summary.TotalJobs)
	assert.Equal(t, 4, ds.Summary.TotalTasks)
	assert.InDelta(t, 0.5, ds.Summary.AvgSuccessRate, 1e-9)
	require.Len(t, ds.Jobs, 1)
	assert.Equal(t, int64(1), ds.Jobs[0].JobID)
}

func TestAggregator_DailySummary_WindowBoundaries(t *testing.T) {
	reader := &fakeReader{
		jobs: map[int64]reconcile.Job{
			// Starts exactly at midnight: included
			1: {JobID: 1, StartTime: ts(1, 0, 0), EndTime: ts(1, 1, 0), Result: event.ResultSucceeded},
			// Starts the next midnight: excluded, belongs to the next day
			2: {JobID: 2, StartTime: ts(2, 0, 0), EndTime: ts(2, 1, 0), Result: event.ResultSucceeded},
			// Starts late on the day and finishes after midnight: still selected
			// by its start_time
			3: {JobID: 3, StartTime: ts(1, 23, 59), EndTime: ts(2, 0, 30), Result: event.ResultSucceeded},
		},
		counts: map[int64]taskCount{},
	}
	agg := NewAggregator(reader)

	ds, err := agg.DailySummary(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Summary.TotalJobs)
	ids := []int64{ds.Jobs[0].JobID, ds.Jobs[1].JobID}
	assert.ElementsMatch(t, []int64{1, 3}, ids)
}

func TestAggregator_DailySummary_EmptyDay(t *testing.T) {
	agg := NewAggregator(&fakeReader{jobs: map[int64]reconcile.Job{}})

	ds, err := agg.DailySummary(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 0, ds.Summary.TotalJobs)
	assert.Equal(t, 0.0, ds.Summary.AvgSuccessRate)
	assert.Equal(t, 0.0, ds.Summary.AvgDurationSeconds)
	assert.Empty(t, ds.Jobs)
}
