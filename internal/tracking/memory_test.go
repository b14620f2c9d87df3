package tracking

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	handle, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotNil(t, handle)

	_, err = uuid.Parse(handle.TaskID)
	assert.NoError(t, err, "task id should be a uuid")
	assert.Equal(t, StatusProcessing, handle.Status)
	assert.False(t, handle.SubmittedAt.IsZero())
	assert.Nil(t, handle.CompletedAt)

	got, err := store.Get(ctx, handle.TaskID)
	require.NoError(t, err)
	assert.Equal(t, handle.TaskID, got.TaskID)
	assert.Equal(t, StatusProcessing, got.Status)
}

func TestMemoryStore_Get_Unknown(t *testing.T) {
	store := NewMemoryStore()

	got, err := store.Get(context.Background(), uuid.New().String())
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrHandleNotFound)
}

func TestMemoryStore_Succeed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	handle, err := store.Create(ctx)
	require.NoError(t, err)

	result := json.RawMessage(`{"job_id":42,"status":"success"}`)
	require.NoError(t, store.Succeed(ctx, handle.TaskID, result))

	got, err := store.Get(ctx, handle.TaskID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.JSONEq(t, string(result), string(got.Result))
	assert.Empty(t, got.Reason)
	require.NotNil(t, got.CompletedAt)
	assert.False(t, got.CompletedAt.Before(got.SubmittedAt))
}

func TestMemoryStore_Fail(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	handle, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Fail(ctx, handle.TaskID, "MalformedEvent"))

	got, err := store.Get(ctx, handle.TaskID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "MalformedEvent", got.Reason)
	assert.Nil(t, got.Result)
	require.NotNil(t, got.CompletedAt)
}

func TestMemoryStore_CompleteUnknownHandle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.Succeed(ctx, "missing", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrHandleNotFound)

	err = store.Fail(ctx, "missing", "InternalError")
	assert.ErrorIs(t, err, ErrHandleNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	handle, err := store.Create(ctx)
	require.NoError(t, err)

	got, err := store.Get(ctx, handle.TaskID)
	require.NoError(t, err)
	got.Status = StatusFailed

	again, err := store.Get(ctx, handle.TaskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, again.Status, "mutating a returned handle must not affect the store")
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const n = 32
	ids := make([]string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle, err := store.Create(ctx)
			assert.NoError(t, err)
			ids[i] = handle.TaskID
			assert.NoError(t, store.Succeed(ctx, handle.TaskID, json.RawMessage(`{}`)))
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, got.Status)
	}
}
