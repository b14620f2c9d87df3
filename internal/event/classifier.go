package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// envelope is the raw wire shape shared by all three listener events. Optional
// fields are pointers so "absent" and "zero" stay distinguishable.
type envelope struct {
	Event          string `json:"event"`
	JobID          *int64 `json:"job_id"`
	Timestamp      string `json:"timestamp"`
	User           string `json:"user"`
	TaskID         string `json:"task_id"`
	DurationMS     *int64 `json:"duration_ms"`
	Successful     *bool  `json:"successful"`
	CompletionTime string `json:"completion_time"`
	JobResult      string `json:"job_result"`
}

// jobResultSucceeded is the literal the upstream listener emits for a
// successful job; every other value maps to a failure.
const jobResultSucceeded = "JobSucceeded"

// Classify parses a raw event envelope into its typed variant, discriminating
// on the "event" field. It validates the fields the matched variant requires
// and rejects everything else before any state is touched.
func Classify(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if env.JobID == nil {
		return nil, fmt.Errorf("%w: missing job_id", ErrMalformedEvent)
	}

	switch Kind(env.Event) {
	case KindJobStart:
		ts, err := parseTimestamp(env.Timestamp)
		if err != nil {
			return nil, err
		}
		return JobStart{
			Job:       *env.JobID,
			Timestamp: ts,
			User:      env.User,
		}, nil

	case KindTaskEnd:
		if env.TaskID == "" {
			return nil, fmt.Errorf("%w: missing task_id", ErrMalformedEvent)
		}
		if env.DurationMS == nil {
			return nil, fmt.Errorf("%w: missing duration_ms", ErrMalformedEvent)
		}
		if *env.DurationMS < 0 {
			return nil, fmt.Errorf("%w: negative duration_ms %d", ErrInvalidEventData, *env.DurationMS)
		}
		ts, err := parseTimestamp(env.Timestamp)
		if err != nil {
			return nil, err
		}
		// The upstream listener omits successful on success
		successful := true
		if env.Successful != nil {
			successful = *env.Successful
		}
		return TaskEnd{
			Job:        *env.JobID,
			TaskID:     env.TaskID,
			DurationMS: *env.DurationMS,
			Successful: successful,
			Timestamp:  ts,
		}, nil

	case KindJobEnd:
		// completion_time is preferred, timestamp is the legacy fallback
		rawTS := env.CompletionTime
		if rawTS == "" {
			rawTS = env.Timestamp
		}
		ts, err := parseTimestamp(rawTS)
		if err != nil {
			return nil, err
		}
		if env.JobResult == "" {
			return nil, fmt.Errorf("%w: missing job_result", ErrMalformedEvent)
		}
		result := ResultFailed
		if env.JobResult == jobResultSucceeded {
			result = ResultSucceeded
		}
		return JobEnd{
			Job:         *env.JobID,
			CompletedAt: ts,
			Result:      result,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedEventKind, env.Event)
	}
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: missing timestamp", ErrMalformedEvent)
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp %q", ErrMalformedEvent, raw)
	}
	return ts.UTC(), nil
}
