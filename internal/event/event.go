package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Kind identifies which lifecycle transition an envelope describes
type Kind string

const (
	KindJobStart Kind = "SparkListenerJobStart"
	KindTaskEnd  Kind = "SparkListenerTaskEnd"
	KindJobEnd   Kind = "SparkListenerJobEnd"
)

// Result is the terminal outcome a JobEnd event reports for a job
type Result string

const (
	ResultUnknown   Result = "unknown"
	ResultSucceeded Result = "succeeded"
	ResultFailed    Result = "failed"
)

// Event is one classified lifecycle event. Values are immutable and are only
// constructed by Classify; downstream code never touches a raw envelope.
type Event interface {
	Kind() Kind
	JobID() int64

	// Fingerprint is the event's idempotency key: a deterministic digest of the
	// kind, identifying fields, and content, so identical payloads always map to
	// the same key without an externally supplied event ID.
	Fingerprint() string
}

// JobStart reports that a job began executing.
type JobStart struct {
	Job       int64
	Timestamp time.Time
	User      string
}

func (e JobStart) Kind() Kind   { return KindJobStart }
func (e JobStart) JobID() int64 { return e.Job }

func (e JobStart) Fingerprint() string {
	return fingerprint(string(KindJobStart), e.Job, "", e.Timestamp, e.User)
}

// TaskEnd reports the outcome of one task within a job.
type TaskEnd struct {
	Job        int64
	TaskID     string
	DurationMS int64
	Successful bool
	Timestamp  time.Time
}

func (e TaskEnd) Kind() Kind   { return KindTaskEnd }
func (e TaskEnd) JobID() int64 { return e.Job }

func (e TaskEnd) Fingerprint() string {
	return fingerprint(string(KindTaskEnd), e.Job, e.TaskID, e.Timestamp,
		fmt.Sprintf("%d|%t", e.DurationMS, e.Successful))
}

// JobEnd reports that a job finished with a terminal result.
type JobEnd struct {
	Job         int64
	CompletedAt time.Time
	Result      Result
}

func (e JobEnd) Kind() Kind   { return KindJobEnd }
func (e JobEnd) JobID() int64 { return e.Job }

func (e JobEnd) Fingerprint() string {
	return fingerprint(string(KindJobEnd), e.Job, "", e.CompletedAt, string(e.Result))
}

func fingerprint(kind string, jobID int64, taskID string, ts time.Time, content string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%d|%s", kind, jobID, taskID, ts.UnixNano(), content)))
	return hex.EncodeToString(sum[:])
}
