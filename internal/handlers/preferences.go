package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"shoppersprint-alerts/internal/database"
	"shoppersprint-alerts/internal/logger"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type UpdatePreferencesRequest struct {
	NotificationEmail *bool   `json:"notification_email,omitempty"`
	NotificationPush  *bool   `json:"notification_push,omitempty"`
	QuietHoursStart   *string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd     *string `json:"quiet_hours_end,omitempty"`
	Timezone          *string `json:"timezone,omitempty"`
	Language          *string `json:"language,omitempty"`
	Currency          *string `json:"currency,omitempty"`
}

// PreferencesHandler dispatches preference operations.
// URL pattern: /api/notifications/preferences/{userId}; callers can only
// touch their own preferences.
func PreferencesHandler(w http.ResponseWriter, r *http.Request, instance string) {
	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/notifications/preferences"), "/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	caller := callerID(r)
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "Caller identity required")
		return
	}
	if caller != userID {
		writeError(w, http.StatusForbidden, "Cannot access another user's preferences")
		return
	}

	switch r.Method {
	case http.MethodGet:
		GetPreferencesHandler(w, r, userID, instance)
	case http.MethodPut:
		UpdatePreferencesHandler(w, r, userID, instance)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// GetPreferencesHandler returns the user's stored preferences. A user who
// never saved any gets a 404, not a default row.
func GetPreferencesHandler(w http.ResponseWriter, r *http.Request, userID string, instance string) {
	ctx := r.Context()
	tracer := otel.Tracer("price-alert-notification")
	ctx, span := tracer.Start(ctx, "GetPreferencesHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	prefs, err := database.GetPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrPreferencesNotFound) {
			writeError(w, http.StatusNotFound, "Notification preferences not configured")
			return
		}
		logger.Log.Error("Failed to fetch preferences",
			zap.String("trace_id", traceID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to fetch preferences")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Preferences retrieved successfully",
		Data:    prefs,
	})
}

// UpdatePreferencesHandler merges the request into the user's preferences,
// creating the row with defaults on first write.
func UpdatePreferencesHandler(w http.ResponseWriter, r *http.Request, userID string, instance string) {
	ctx := r.Context()
	tracer := otel.Tracer("price-alert-notification")
	ctx, span := tracer.Start(ctx, "UpdatePreferencesHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	var req UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Error("Failed to parse request body",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if fields := validatePreferences(&req); fields != nil {
		logger.Log.Warn("Preferences validation failed",
			zap.String("trace_id", traceID),
			zap.Any("fields", fields),
		)
		writeValidationErrors(w, fields)
		return
	}

	patch := database.PreferencesPatch{
		NotificationEmail: req.NotificationEmail,
		NotificationPush:  req.NotificationPush,
		Timezone:          req.Timezone,
		Language:          req.Language,
		Currency:          req.Currency,
	}

	// Validation guarantees the quiet-hours bounds arrive as a pair;
	// empty strings clear the window.
	if req.QuietHoursStart != nil {
		patch.QuietHoursProvided = true
		if *req.QuietHoursStart != "" {
			patch.QuietHoursStart = req.QuietHoursStart
			patch.QuietHoursEnd = req.QuietHoursEnd
		}
	}

	prefs, err := database.UpsertPreferences(ctx, userID, patch)
	if err != nil {
		logger.Log.Error("Failed to save preferences",
			zap.String("trace_id", traceID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to save preferences")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Preferences saved successfully",
		Data:    prefs,
	})
}
