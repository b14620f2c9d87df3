package handler

import (
	"encoding/base64"
	"fmt"

	"github.com/cuongbtq/spark-analytics/internal/storage"
)

func DecodeJobCursor(cursorStr string) (*storage.JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	var jobID int64
	if _, err := fmt.Sscanf(string(decoded), "%d", &jobID); err != nil {
		return nil, fmt.Errorf("invalid job_id in cursor: %w", err)
	}

	return &storage.JobCursor{JobID: jobID}, nil
}

func EncodeJobCursor(cursor *storage.JobCursor) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", cursor.JobID)))
}
