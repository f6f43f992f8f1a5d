package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hugh/go-assess/internal/database"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const healthTimeout = 3 * time.Second

// dependencyCheck reports whether one backing service is reachable.
type dependencyCheck struct {
	name  string
	check func(ctx context.Context) error
}

type HealthHandler struct {
	checks []dependencyCheck
}

// NewHealthHandler checks the database and, when configured, Redis, which
// backs the report queue and the per-organization run lock.
func NewHealthHandler(db *gorm.DB, rdb redis.UniversalClient) *HealthHandler {
	h := &HealthHandler{}
	h.checks = append(h.checks, dependencyCheck{
		name:  "database",
		check: func(ctx context.Context) error { return database.Ping(ctx, db) },
	})
	if rdb != nil {
		h.checks = append(h.checks, dependencyCheck{
			name:  "redis",
			check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	return h
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Services: make(map[string]string, len(h.checks))}
	for _, c := range h.checks {
		if err := c.check(ctx); err != nil {
			resp.Services[c.name] = "unhealthy"
			resp.Status = "unhealthy"
			continue
		}
		resp.Services[c.name] = "healthy"
	}

	status := http.StatusOK
	if resp.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Ready only reports that the process is serving.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
