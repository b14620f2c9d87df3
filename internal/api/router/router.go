package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/spark-analytics/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "spark-analytics-api",
		})
	})

	eventHandler := handler.NewEventHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/events - Submit one lifecycle event envelope
		v1.POST("/events", eventHandler.IngestEvent)

		// GET /api/v1/tasks/:task_id - Poll an event's tracking handle
		v1.GET("/tasks/:task_id", eventHandler.GetTaskStatus)

		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List reconciled jobs with pagination
			jobs.GET("", eventHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Per-job analytics summary
			jobs.GET("/:job_id", eventHandler.GetJobSummary)
		}

		// GET /api/v1/summary?date=YYYY-MM-DD - Daily fleet summary
		v1.GET("/summary", eventHandler.GetDailySummary)
	}

	return r
}
