package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"shoppersprint-alerts/internal/cache"
	"shoppersprint-alerts/internal/catalog"
	"shoppersprint-alerts/internal/database"
	"shoppersprint-alerts/internal/logger"
	"shoppersprint-alerts/internal/models"
	"shoppersprint-alerts/internal/ratelimit"

	"github.com/google/uuid"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Collaborators wired from main. A nil Catalog skips product validation;
// a nil Mailer skips verification email delivery.
var (
	Catalog catalog.Source
	Mailer  interface {
		SendVerification(ctx context.Context, recipient, alertID, token string) error
	}
)

const (
	alertCreatePerMinute = 10
	anonAlertPerMinute   = 3

	verificationTTL = 24 * time.Hour
	browseCacheTTL  = 30 * time.Second
)

type CreateAlertRequest struct {
	ProductID   string   `json:"product_id"`
	AlertType   string   `json:"alert_type"`
	TargetPrice *int64   `json:"target_price"`
	Threshold   *float64 `json:"threshold,omitempty"`
	Currency    string   `json:"currency,omitempty"`
}

type AnonymousAlertRequest struct {
	CreateAlertRequest
	Email string `json:"email"`
}

type UpdateAlertRequest struct {
	AlertType   *string  `json:"alert_type,omitempty"`
	TargetPrice *int64   `json:"target_price,omitempty"`
	Threshold   *float64 `json:"threshold,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// AlertsHandler dispatches all alert operations based on path and method.
// URL patterns: /api/notifications/alerts, /api/notifications/alerts/{id},
// plus the anonymous and verify sub-resources.
func AlertsHandler(w http.ResponseWriter, r *http.Request, instance string) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/notifications/alerts"), "/")

	switch rest {
	case "":
		switch r.Method {
		case http.MethodGet:
			BrowseAlertsHandler(w, r, instance)
		case http.MethodPost:
			CreateAlertHandler(w, r, instance)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	case "anonymous":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		CreateAnonymousAlertHandler(w, r, instance)
		return
	case "verify":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		VerifyAlertHandler(w, r, instance)
		return
	}

	if strings.Contains(rest, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	alertID := rest

	switch r.Method {
	case http.MethodGet:
		GetAlertHandler(w, r, alertID, instance)
	case http.MethodPut, http.MethodPatch:
		UpdateAlertHandler(w, r, alertID, instance)
	case http.MethodDelete:
		DeleteAlertHandler(w, r, alertID, instance)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// BrowseAlertsHandler lists the caller's alerts, optionally filtered by
// product_id. Responses are cached per user for a short window.
func BrowseAlertsHandler(w http.ResponseWriter, r *http.Request, instance string) {
	ctx := r.Context()
	tracer := otel.Tracer("price-alert-notification")
	ctx, span := tracer.Start(ctx, "BrowseAlertsHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := callerID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Caller identity required")
		return
	}

	cacheKey := generateCacheKey(r, "alerts_"+userID+"_")

	cached, err := cache.GetCache(ctx, cacheKey, "/alerts", instance)
	if err == nil && cached != "" {
		logger.Log.Info("Cache hit for alert browse",
			zap.String("trace_id", traceID),
			zap.String("cache_key", cacheKey),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(cached))
		return
	}

	logger.Log.Info("Cache miss for alert browse, processing request",
		zap.String("trace_id", traceID),
		zap.String("cache_key", cacheKey),
	)

	productID := r.URL.Query().Get("product_id")

	var alerts []*models.PriceAlert
	var dbErr error

	if productID != "" {
		alerts, dbErr = database.GetAlertsByUserAndProduct(ctx, userID, productID)
	} else {
		alerts, dbErr = database.GetAlertsByUserID(ctx, userID)
	}

	if dbErr != nil {
		logger.Log.Error("Failed to fetch alerts",
			zap.String("trace_id", traceID),
			zap.String("user_id", userID),
			zap.Error(dbErr),
		)
		writeError(w, http.StatusInternalServerError, "Failed to fetch alerts")
		return
	}

	if alerts == nil {
		alerts = []*models.PriceAlert{}
	}

	response := Response{
		Message: "Alerts retrieved successfully",
		Data:    alerts,
	}

	respBytes, err := json.Marshal(response)
	if err != nil {
		logger.Log.Error("Failed to encode JSON response",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to encode JSON response")
		return
	}

	if cacheErr := cache.SetCache(ctx, cacheKey, string(respBytes), browseCacheTTL, "/alerts", instance); cacheErr != nil {
		logger.Log.Warn("Failed to store response in cache",
			zap.String("trace_id", traceID),
			zap.String("cache_key", cacheKey),
			zap.Error(cacheErr),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(respBytes)
}

// CreateAlertHandler creates an alert owned by the caller. At most one
// active alert per (user, product) pair; a second one gets a 409.
func CreateAlertHandler(w http.ResponseWriter, r *http.Request, instance string) {
	ctx := r.Context()
	tracer := otel.Tracer("price-alert-notification")
	ctx, span := tracer.Start(ctx, "CreateAlertHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := callerID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Caller identity required")
		return
	}

	if !ratelimit.Allow(ctx, "alert_create:"+userID, alertCreatePerMinute) {
		writeError(w, http.StatusTooManyRequests, "Too many alerts created, try again later")
		return
	}

	var req CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Error("Failed to parse request body",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if fields := validateCreateAlert(&req); fields != nil {
		logger.Log.Warn("Alert validation failed",
			zap.String("trace_id", traceID),
			zap.Any("fields", fields),
		)
		writeValidationErrors(w, fields)
		return
	}

	if !productExists(ctx, traceID, req.ProductID) {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	now := time.Now()
	alert := &models.PriceAlert{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProductID:   req.ProductID,
		AlertType:   req.AlertType,
		TargetPrice: *req.TargetPrice,
		Threshold:   req.Threshold,
		Currency:    req.Currency,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := database.CreateAlert(ctx, alert); err != nil {
		if errors.Is(err, database.ErrDuplicateActiveAlert) {
			writeError(w, http.StatusConflict, "An active alert for this product already exists")
			return
		}
		logger.Log.Error("Failed to create alert",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to create alert")
		return
	}

	invalidateUserAlerts(ctx, userID, instance)

	writeJSON(w, http.StatusCreated, Response{
		Message: "Alert created successfully",
		Data:    alert,
	})
}

// GetAlertHandler retrieves one of the caller's alerts by ID. Foreign
// alerts look like missing ones.
func GetAlertHandler(w http.ResponseWriter, r *http.Request, alertID string, instance string) {
	ctx := r.Context()
	tracer := otel.Tracer("price-alert-notification")
	ctx, span := tracer.Start(ctx, "GetAlertHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := callerID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Caller identity required")
		return
	}

	alert, err := database.GetAlertByIDForUser(ctx, alertID, userID)
	if err != nil {
		if errors.Is(err, database.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found")
			return
		}
		logger.Log.Error("Failed to fetch alert",
			zap.String("trace_id", traceID),
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to fetch alert")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "Alert retrieved successfully",
		Data:    alert,
	})
}

// UpdateAlertHandler applies a partial update to one of the caller's
// alerts. The threshold column is written through on every update, so
// omitting it clears any stored threshold.
func UpdateAlertHandler(w http.ResponseWriter, r *http.Request, alertID string, instance string) {
	ctx := r.Context()
	tracer := otel.Tracer("price-alert-notification")
	ctx, span := tracer.Start(ctx, "UpdateAlertHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := callerID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Caller identity required")
		return
	}

	var req UpdateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Error("Failed to parse request body",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if fields := validateUpdateAlert(&req); fields != nil {
		logger.Log.Warn("Alert validation failed",
			zap.String("trace_id", traceID),
			zap.Any("fields", fields),
		)
		writeValidationErrors(w, fields)
		return
	}

	alert, err := database.UpdateAlert(ctx, alertID, userID, database.AlertPatch{
		AlertType:   req.AlertType,
		TargetPrice: req.TargetPrice,
		Threshold:   req.Threshold,
		IsActive:    req.IsActive,
	})
	if err != nil {
		if errors.Is(err, database.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found")
			return
		}
		if errors.Is(err, database.ErrDuplicateActiveAlert) {
			writeError(w, http.StatusConflict, "An active alert for this product already exists")
			return
		}
		logger.Log.Error("Failed to update alert",
			zap.String("trace_id", traceID),
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to update alert")
		return
	}

	invalidateUserAlerts(ctx, userID, instance)

	writeJSON(w, http.StatusOK, Response{
		Message: "Alert updated successfully",
		Data:    alert,
	})
}

// DeleteAlertHandler removes one of the caller's alerts.
func DeleteAlertHandler(w http.ResponseWriter, r *http.Request, alertID string, instance string) {
	ctx := r.Context()
	tracer := otel.Tracer("price-alert-notification")
	ctx, span := tracer.Start(ctx, "DeleteAlertHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	userID := callerID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Caller identity required")
		return
	}

	if err := database.DeleteAlert(ctx, alertID, userID); err != nil {
		if errors.Is(err, database.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found")
			return
		}
		logger.Log.Error("Failed to delete alert",
			zap.String("trace_id", traceID),
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to delete alert")
		return
	}

	invalidateUserAlerts(ctx, userID, instance)

	writeJSON(w, http.StatusOK, Response{
		Message: "Alert deleted successfully",
	})
}

// CreateAnonymousAlertHandler creates an inactive alert for a shopper
// without an account. The alert only starts evaluating once the email
// address confirms it through the verification token.
func CreateAnonymousAlertHandler(w http.ResponseWriter, r *http.Request, instance string) {
	ctx := r.Context()
	tracer := otel.Tracer("price-alert-notification")
	ctx, span := tracer.Start(ctx, "CreateAnonymousAlertHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	var req AnonymousAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.Error("Failed to parse request body",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if fields := validateAnonymousAlert(&req); fields != nil {
		logger.Log.Warn("Anonymous alert validation failed",
			zap.String("trace_id", traceID),
			zap.Any("fields", fields),
		)
		writeValidationErrors(w, fields)
		return
	}

	email := strings.ToLower(req.Email)

	if !ratelimit.Allow(ctx, "anon_alert:"+email, anonAlertPerMinute) {
		writeError(w, http.StatusTooManyRequests, "Too many alerts created, try again later")
		return
	}

	if !productExists(ctx, traceID, req.ProductID) {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	now := time.Now()
	alert := &models.PriceAlert{
		ID:           uuid.New().String(),
		UserID:       "guest-" + uuid.New().String(),
		ProductID:    req.ProductID,
		AlertType:    req.AlertType,
		TargetPrice:  *req.TargetPrice,
		Threshold:    req.Threshold,
		Currency:     req.Currency,
		ContactEmail: &email,
		IsActive:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := database.CreateAlert(ctx, alert); err != nil {
		logger.Log.Error("Failed to create anonymous alert",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to create alert")
		return
	}

	token := uuid.New().String()
	if err := cache.SetCache(ctx, "verify:"+token, alert.ID, verificationTTL, "/alerts/anonymous", instance); err != nil {
		logger.Log.Error("Failed to store verification token",
			zap.String("trace_id", traceID),
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to start verification")
		return
	}

	if Mailer != nil {
		if err := Mailer.SendVerification(ctx, email, alert.ID, token); err != nil {
			logger.Log.Warn("Failed to send verification email",
				zap.String("trace_id", traceID),
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
		}
	}

	writeJSON(w, http.StatusCreated, Response{
		Message: "Alert created, check your email to activate it",
		Data:    alert,
	})
}

// VerifyAlertHandler activates a pending anonymous alert. Tokens are
// single use and expire with their Redis key.
func VerifyAlertHandler(w http.ResponseWriter, r *http.Request, instance string) {
	ctx := r.Context()
	tracer := otel.Tracer("price-alert-notification")
	ctx, span := tracer.Start(ctx, "VerifyAlertHandler")
	defer span.End()

	traceID := span.SpanContext().TraceID().String()

	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Verification token required")
		return
	}

	alertID, err := cache.GetCache(ctx, "verify:"+token, "/alerts/verify", instance)
	if err != nil {
		logger.Log.Error("Failed to look up verification token",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Verification is temporarily unavailable")
		return
	}
	if alertID == "" {
		writeError(w, http.StatusNotFound, "Invalid or expired verification token")
		return
	}

	alert, err := database.ActivateAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, database.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "Alert no longer exists")
			return
		}
		if errors.Is(err, database.ErrDuplicateActiveAlert) {
			writeError(w, http.StatusConflict, "An active alert for this product already exists")
			return
		}
		logger.Log.Error("Failed to activate alert",
			zap.String("trace_id", traceID),
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to activate alert")
		return
	}

	if err := cache.DeleteKey(ctx, "verify:"+token); err != nil {
		logger.Log.Warn("Failed to delete verification token",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
	}

	invalidateUserAlerts(ctx, alert.UserID, instance)

	logger.Log.Info("Alert verified and activated",
		zap.String("trace_id", traceID),
		zap.String("alert_id", alert.ID),
	)

	writeJSON(w, http.StatusOK, Response{
		Message: "Alert verified successfully",
		Data:    alert,
	})
}

// productExists asks the catalog about a product before an alert is
// created for it. A missing product vetoes creation; a catalog outage
// does not.
func productExists(ctx context.Context, traceID, productID string) bool {
	if Catalog == nil {
		return true
	}

	if _, err := Catalog.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return false
		}
		logger.Log.Warn("Catalog unavailable, skipping product check",
			zap.String("trace_id", traceID),
			zap.String("product_id", productID),
			zap.Error(err),
		)
	}

	return true
}

func invalidateUserAlerts(ctx context.Context, userID, instance string) {
	cache.InvalidateByPrefix(ctx, "alerts_"+userID+"_", "/alerts", instance)
}

func generateCacheKey(r *http.Request, prefix string) string {
	queryParams := r.URL.Query()
	var keys []string
	for k := range queryParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var queryString []string
	for _, k := range keys {
		queryString = append(queryString, fmt.Sprintf("%s=%s", k, strings.Join(queryParams[k], ",")))
	}
	joinedParams := strings.Join(queryString, "&")

	hash := sha256.Sum256([]byte(joinedParams))
	return prefix + hex.EncodeToString(hash[:8])
}
