package handler

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/spark-analytics/internal/storage"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	for _, jobID := range []int64{0, 1, 42, 9223372036854775807} {
		encoded := EncodeJobCursor(&storage.JobCursor{JobID: jobID})

		cursor, err := DecodeJobCursor(encoded)
		require.NoError(t, err)
		require.NotNil(t, cursor)
		assert.Equal(t, jobID, cursor.JobID)
	}
}

func TestDecodeJobCursor_Empty(t *testing.T) {
	cursor, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeJobCursor_Invalid(t *testing.T) {
	t.Run("not base64", func(t *testing.T) {
		_, err := DecodeJobCursor("!!!not-base64!!!")
		require.Error(t, err)
	})

	t.Run("not a job id", func(t *testing.T) {
		garbage := base64.StdEncoding.EncodeToString([]byte("not-a-number"))
		_, err := DecodeJobCursor(garbage)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid job_id in cursor")
	})
}
