package handlers

import (
	"context"
	"net/http"
	"time"

	"shoppersprint-alerts/internal/cache"
	"shoppersprint-alerts/internal/database"
)

// HealthHandler reports liveness plus the state of the backing stores. A
// failed dependency turns the response into a 503 so load balancers stop
// routing here.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	health := map[string]string{"status": "ok", "database": "up", "redis": "up"}

	if err := database.Ping(ctx); err != nil {
		health["status"] = "degraded"
		health["database"] = "down"
		status = http.StatusServiceUnavailable
	}

	if err := cache.RedisClient.Ping(ctx).Err(); err != nil {
		health["status"] = "degraded"
		health["redis"] = "down"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, health)
}
