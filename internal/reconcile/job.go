package reconcile

import (
	"time"

	"github.com/cuongbtq/spark-analytics/internal/event"
)

// Job is the accumulated per-job record. A record exists once any event
// referencing its job_id has been applied; fields stay unset until the
// corresponding event is merged, so the zero-ish shape below is normal for
// jobs observed out of order.
type Job struct {
	JobID     int64
	User      string
	StartTime *time.Time
	EndTime   *time.Time
	Result    event.Result
}

// Completed reports whether both lifecycle endpoints have been observed.
// Only completed jobs participate in daily aggregates.
func (j *Job) Completed() bool {
	return j.StartTime != nil && j.EndTime != nil
}

// TaskRecord is one task outcome within a job. At most one record per
// (job_id, task_id) pair ever survives.
type TaskRecord struct {
	JobID      int64
	TaskID     string
	DurationMS int64
	Successful bool
	ObservedAt time.Time
}
