package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/spark-analytics/internal/analytics"
	"github.com/cuongbtq/spark-analytics/internal/api/dto"
	"github.com/cuongbtq/spark-analytics/internal/event"
	"github.com/cuongbtq/spark-analytics/internal/reconcile"
	"github.com/cuongbtq/spark-analytics/internal/tracking"
	"github.com/cuongbtq/spark-analytics/internal/worker/domain"
)

// IngestEvent handles POST /api/v1/events
// Accepts one event envelope, registers a tracking handle, and queues the
// event for asynchronous reconciliation.
func (h *EventHandler) IngestEvent(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.logger.Error("Failed to read request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	// Pre-filter: reject envelopes the worker could never reconcile. The
	// worker re-classifies authoritatively; this keeps garbage off the queue.
	if _, err := event.Classify(raw); err != nil {
		h.logger.Warn("Rejected event envelope",
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": classificationReason(err),
		})
		return
	}

	handle, err := h.tracking.Create(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to create tracking handle", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to accept event",
		})
		return
	}

	msg := domain.EventMessage{
		TrackingID: handle.TaskID,
		Payload:    raw,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode event message", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to accept event",
		})
		return
	}

	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish event",
			slog.String("tracking_id", handle.TaskID),
			slog.String("error", err.Error()),
		)
		if failErr := h.tracking.Fail(c.Request.Context(), handle.TaskID, "StorageUnavailable"); failErr != nil {
			h.logger.Error("Failed to fail tracking handle",
				slog.String("tracking_id", handle.TaskID),
				slog.String("error", failErr.Error()),
			)
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to queue event",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestResponse{
		Status: "received",
		TaskID: handle.TaskID,
	})
}

// GetTaskStatus handles GET /api/v1/tasks/:task_id
// Polls the tracking handle for a submitted event.
func (h *EventHandler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("task_id")

	handle, err := h.tracking.Get(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, tracking.ErrHandleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Unknown task_id",
			})
			return
		}
		h.logger.Error("Failed to get tracking handle",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get task status",
		})
		return
	}

	resp := dto.TaskStatusResponse{
		TaskID: handle.TaskID,
		Status: string(handle.Status),
		Result: handle.Result,
		Reason: handle.Reason,
	}

	if handle.Status == tracking.StatusProcessing {
		c.JSON(http.StatusAccepted, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetJobSummary handles GET /api/v1/jobs/:job_id
// Returns the per-job analytics, or a processing placeholder while the job is
// still missing a lifecycle endpoint.
func (h *EventHandler) GetJobSummary(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be an integer",
		})
		return
	}

	summary, err := h.aggregator.JobSummary(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, reconcile.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to compute job summary",
			slog.Int64("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to compute job summary",
		})
		return
	}

	if summary.Pending() {
		c.JSON(http.StatusAccepted, gin.H{
			"job_id": jobID,
			"status": analytics.StatusProcessing,
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetDailySummary handles GET /api/v1/summary?date=YYYY-MM-DD
// Returns fleet-wide analytics for all jobs started on the given UTC day.
func (h *EventHandler) GetDailySummary(c *gin.Context) {
	rawDate := c.Query("date")

	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid date format. Use YYYY-MM-DD",
		})
		return
	}

	summary, err := h.aggregator.DailySummary(c.Request.Context(), date.UTC())
	if err != nil {
		h.logger.Error("Failed to compute daily summary",
			slog.String("date", rawDate),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to compute daily summary",
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// classificationReason maps a classification error to its taxonomy name
func classificationReason(err error) string {
	switch {
	case errors.Is(err, event.ErrUnrecognizedEventKind):
		return "UnrecognizedEventKind"
	case errors.Is(err, event.ErrInvalidEventData):
		return "InvalidEventData"
	default:
		return "MalformedEvent"
	}
}
