package analytics

import (
	"time"

	"github.com/cuongbtq/spark-analytics/internal/event"
)

// Job status values surfaced in summaries. A job stays processing until both
// its start and end have been reconciled, however many tasks it has reported.
const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailure    = "failure"
)

// JobSummary is the per-job analytics payload.
type JobSummary struct {
	JobID           int64      `json:"job_id"`
	User            string     `json:"user,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Status          string     `json:"status"`
	TotalTasks      int        `json:"total_tasks"`
	FailedTasks     int        `json:"failed_tasks"`
	SuccessRate     float64    `json:"success_rate"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
}

// Pending reports whether the job is still missing a lifecycle endpoint.
func (s *JobSummary) Pending() bool {
	return s.Status == StatusProcessing
}

// FleetSummary holds the aggregates across all completed jobs of one day.
type FleetSummary struct {
	TotalJobs          int     `json:"total_jobs"`
	TotalTasks         int     `json:"total_tasks"`
	FailedTasks        int     `json:"failed_tasks"`
	AvgSuccessRate     float64 `json:"avg_success_rate"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// DailySummary is the per-date analytics payload.
type DailySummary struct {
	Date    string       `json:"date"`
	Summary FleetSummary `json:"summary"`
	Jobs    []JobSummary `json:"jobs"`
}

func statusOf(result event.Result, completed bool) string {
	if !completed {
		return StatusProcessing
	}
	if result == event.ResultSucceeded {
		return StatusSuccess
	}
	return StatusFailure
}
