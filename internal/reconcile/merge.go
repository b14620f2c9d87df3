package reconcile

import (
	"github.com/cuongbtq/spark-analytics/internal/event"
)

// MergeResult describes what folding one event into a job record did.
type MergeResult struct {
	// Changed is true when the record was modified and must be persisted.
	Changed bool

	// Anomaly is true when two events of the same kind carried different
	// values at the exact same timestamp. The first-applied value is kept and
	// the collision is reported so the caller can log it.
	Anomaly bool
}

// MergeJobStart folds a JobStart into the record. The merge is commutative
// and idempotent: when two starts disagree, the one with the earlier
// wall-clock timestamp wins regardless of arrival order.
func MergeJobStart(job *Job, ev event.JobStart) MergeResult {
	switch {
	case job.StartTime == nil:
		ts := ev.Timestamp
		job.StartTime = &ts
		job.User = ev.User
		return MergeResult{Changed: true}

	case ev.Timestamp.Before(*job.StartTime):
		ts := ev.Timestamp
		job.StartTime = &ts
		job.User = ev.User
		return MergeResult{Changed: true}

	case ev.Timestamp.Equal(*job.StartTime):
		if ev.User != job.User {
			return MergeResult{Anomaly: true}
		}
		return MergeResult{}

	default:
		// Stored start is earlier; the incoming event loses the tie-break.
		return MergeResult{}
	}
}

// MergeJobEnd folds a JobEnd into the record with the same earliest-timestamp
// discipline as MergeJobStart.
func MergeJobEnd(job *Job, ev event.JobEnd) MergeResult {
	switch {
	case job.EndTime == nil:
		ts := ev.CompletedAt
		job.EndTime = &ts
		job.Result = ev.Result
		return MergeResult{Changed: true}

	case ev.CompletedAt.Before(*job.EndTime):
		ts := ev.CompletedAt
		job.EndTime = &ts
		job.Result = ev.Result
		return MergeResult{Changed: true}

	case ev.CompletedAt.Equal(*job.EndTime):
		if ev.Result != job.Result {
			return MergeResult{Anomaly: true}
		}
		return MergeResult{}

	default:
		return MergeResult{}
	}
}
