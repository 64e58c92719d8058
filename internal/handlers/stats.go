package handlers

import (
	"crypto/subtle"
	"net/http"
	"os"

	"shoppersprint-alerts/internal/database"
	"shoppersprint-alerts/internal/logger"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// SessionCounter reports how many realtime sessions this instance holds.
type SessionCounter interface {
	Count() int
}

// Sessions is set from main so stats can report realtime connections.
var Sessions SessionCounter

// StatsHandler returns aggregate alert counts for operators. Access needs
// the admin token; an unset ADMIN_TOKEN fails closed.
func StatsHandler(w http.ResponseWriter, r *http.Request, instance string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	adminToken := os.Getenv("ADMIN_TOKEN")
	provided := r.Header.Get("X-Admin-Token")
	if adminToken == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(adminToken)) != 1 {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	ctx := r.Context()
	tracer := otel.Tracer("price-alert-notification")
	ctx, span := tracer.Start(ctx, "StatsHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	stats, err := database.GetAlertStats(ctx)
	if err != nil {
		logger.Log.Error("Failed to fetch alert stats",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}

	if Sessions != nil {
		stats.ConnectedSessions = Sessions.Count()
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Stats retrieved successfully",
		Data:    stats,
	})
}
