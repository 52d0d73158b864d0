package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/maruel/flatdb/internal/models"
	"github.com/maruel/flatdb/internal/storage"
)

// HealthHandler reports whether every collection file can be read.
type HealthHandler struct {
	version  string
	registry *storage.Registry
	started  time.Time
	now      func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string, registry *storage.Registry) *HealthHandler {
	return &HealthHandler{
		version:  version,
		registry: registry,
		started:  time.Now(),
		now:      time.Now,
	}
}

// Health reads each collection under its shared lock. Collections that fail
// are listed and the status becomes "degraded"; the request itself succeeds.
func (h *HealthHandler) Health(ctx context.Context, req *models.HealthRequest) (*models.HealthResponse, error) {
	resp := &models.HealthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(h.now().Sub(h.started) / time.Second),
	}
	for _, name := range h.registry.Names() {
		resp.Collections++
		c, err := h.registry.Get(name)
		if err == nil {
			_, err = c.SHA1(ctx)
		}
		if err != nil {
			slog.WarnContext(ctx, "Collection unhealthy", "collection", name, "err", err)
			resp.Status = "degraded"
			resp.Failing = append(resp.Failing, name)
		}
	}
	return resp, nil
}
