package handler

import (
	"log/slog"

	"github.com/cuongbtq/spark-analytics/internal/analytics"
	"github.com/cuongbtq/spark-analytics/internal/storage"
	"github.com/cuongbtq/spark-analytics/internal/tracking"
	"github.com/cuongbtq/spark-analytics/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	RabbitClient *rabbitmq.Client
	Tracking     tracking.Store
	Aggregator   *analytics.Aggregator
	Storage      *storage.Storage
}

// EventHandler handles event ingestion and analytics HTTP requests
type EventHandler struct {
	logger       *slog.Logger
	rabbitClient *rabbitmq.Client
	tracking     tracking.Store
	aggregator   *analytics.Aggregator
	storage      *storage.Storage
}

// NewEventHandler creates a new EventHandler instance
func NewEventHandler(deps *Dependencies) *EventHandler {
	return &EventHandler{
		logger:       deps.Logger,
		rabbitClient: deps.RabbitClient,
		tracking:     deps.Tracking,
		aggregator:   deps.Aggregator,
		storage:      deps.Storage,
	}
}
