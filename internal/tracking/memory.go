package tracking

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used in tests and single-node setups.
type MemoryStore struct {
	mu      sync.RWMutex
	handles map[string]Handle
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		handles: make(map[string]Handle),
	}
}

func (s *MemoryStore) Create(_ context.Context) (*Handle, error) {
	handle := Handle{
		TaskID:      uuid.New().String(),
		Status:      StatusProcessing,
		SubmittedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.handles[handle.TaskID] = handle
	s.mu.Unlock()

	return &handle, nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (*Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handle, ok := s.handles[taskID]
	if !ok {
		return nil, ErrHandleNotFound
	}
	return &handle, nil
}

func (s *MemoryStore) Succeed(_ context.Context, taskID string, result json.RawMessage) error {
	return s.complete(taskID, func(h *Handle) {
		h.Status = StatusSuccess
		h.Result = result
	})
}

func (s *MemoryStore) Fail(_ context.Context, taskID string, reason string) error {
	return s.complete(taskID, func(h *Handle) {
		h.Status = StatusFailed
		h.Reason = reason
	})
}

func (s *MemoryStore) complete(taskID string, update func(*Handle)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.handles[taskID]
	if !ok {
		return ErrHandleNotFound
	}

	now := time.Now().UTC()
	handle.CompletedAt = &now
	update(&handle)
	s.handles[taskID] = handle

	return nil
}
