package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/spark-analytics/internal/analytics"
	"github.com/cuongbtq/spark-analytics/internal/api/dto"
	"github.com/cuongbtq/spark-analytics/internal/event"
	"github.com/cuongbtq/spark-analytics/internal/reconcile"
	"github.com/cuongbtq/spark-analytics/internal/storage"
)

// ListJobs handles GET /api/v1/jobs
// Lists reconciled jobs with optional filtering and cursor pagination
func (h *EventHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		Result:   req.Result,
		User:     req.User,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i, job := range jobs {
		jobResponse[i] = toJobDTO(job)
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{JobID: lastJob.JobID})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

func toJobDTO(job reconcile.Job) dto.JobDTO {
	d := dto.JobDTO{
		JobID:  job.JobID,
		User:   job.User,
		Status: analytics.StatusProcessing,
	}
	if job.StartTime != nil {
		d.StartTime = job.StartTime.Format(time.RFC3339)
	}
	if job.EndTime != nil {
		d.EndTime = job.EndTime.Format(time.RFC3339)
	}
	if job.Completed() {
		if job.Result == event.ResultSucceeded {
			d.Status = analytics.StatusSuccess
		} else {
			d.Status = analytics.StatusFailure
		}
	}
	return d
}
