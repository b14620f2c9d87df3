package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "tracking:"

// RedisStore keeps tracking handles in Redis, the same role a result backend
// plays for a task queue. Handles carry no TTL: retention is out of scope for
// now, so a long-lived deployment should budget for the keyspace growth.
type RedisStore struct {
	client *goredis.Client
}

func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context) (*Handle, error) {
	handle := &Handle{
		TaskID:      uuid.New().String(),
		Status:      StatusProcessing,
		SubmittedAt: time.Now().UTC(),
	}

	if err := s.put(ctx, handle); err != nil {
		return nil, fmt.Errorf("failed to create tracking handle: %w", err)
	}

	return handle, nil
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (*Handle, error) {
	data, err := s.client.Get(ctx, keyPrefix+taskID).Bytes()
	if err == goredis.Nil {
		return nil, ErrHandleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking handle: %w", err)
	}

	var handle Handle
	if err := json.Unmarshal(data, &handle); err != nil {
		return nil, fmt.Errorf("failed to decode tracking handle: %w", err)
	}

	return &handle, nil
}

func (s *RedisStore) Succeed(ctx context.Context, taskID string, result json.RawMessage) error {
	return s.complete(ctx, taskID, func(h *Handle) {
		h.Status = StatusSuccess
		h.Result = result
	})
}

func (s *RedisStore) Fail(ctx context.Context, taskID string, reason string) error {
	return s.complete(ctx, taskID, func(h *Handle) {
		h.Status = StatusFailed
		h.Reason = reason
	})
}

func (s *RedisStore) complete(ctx context.Context, taskID string, update func(*Handle)) error {
	handle, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	handle.CompletedAt = &now
	update(handle)

	if err := s.put(ctx, handle); err != nil {
		return fmt.Errorf("failed to complete tracking handle: %w", err)
	}

	return nil
}

func (s *RedisStore) put(ctx context.Context, handle *Handle) error {
	data, err := json.Marshal(handle)
	if err != nil {
		return fmt.Errorf("failed to encode tracking handle: %w", err)
	}

	return s.client.Set(ctx, keyPrefix+handle.TaskID, data, 0).Err()
}
