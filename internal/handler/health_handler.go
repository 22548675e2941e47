package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/grachmannico95/wallet-webhook/internal/eventbus"
	"github.com/labstack/echo/v4"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueReporter exposes event bus counters.
type QueueReporter interface {
	Stats() eventbus.Stats
}

type HealthHandler struct {
	storage Pinger
	queue   QueueReporter
}

func NewHealthHandler(storage Pinger) *HealthHandler {
	return &HealthHandler{storage: storage}
}

// WithQueue adds the event bus counters to the health response.
func (h *HealthHandler) WithQueue(queue QueueReporter) *HealthHandler {
	h.queue = queue
	return h
}

func (h *HealthHandler) Check(c echo.Context) error {
	storageStatus := "ok"
	code := http.StatusOK

	if h.storage != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := h.storage.Ping(ctx); err != nil {
			storageStatus = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	status := "ok"
	if code != http.StatusOK {
		status = "degraded"
	}

	body := map[string]interface{}{
		"status":    status,
		"storage":   storageStatus,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.queue != nil {
		body["event_bus"] = h.queue.Stats()
	}

	return c.JSON(code, body)
}
