// Package tracking correlates submitted events with their asynchronous
// processing outcome. Handles are ephemeral: they are not part of durable job
// analytics and a worker crash may leave one processing forever, which is why
// redelivery plus the idempotent merge is the real recovery path.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Status is the lifecycle of one tracking handle.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

var (
	// ErrHandleNotFound is returned when polling an unknown tracking id
	ErrHandleNotFound = errors.New("tracking handle not found")
)

// Handle is one submission's pollable record. It is created at submission
// time and updated exactly once by the worker that processes the event.
type Handle struct {
	TaskID      string          `json:"task_id"`
	Status      Status          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Store persists tracking handles.
type Store interface {
	// Create registers a new processing handle and returns it.
	Create(ctx context.Context) (*Handle, error)

	// Get returns the handle for a tracking id, or ErrHandleNotFound.
	Get(ctx context.Context, taskID string) (*Handle, error)

	// Succeed marks the handle done and attaches the result payload.
	Succeed(ctx context.Context, taskID string, result json.RawMessage) error

	// Fail marks the handle failed with the error kind as reason.
	Fail(ctx context.Context, taskID string, reason string) error
}
