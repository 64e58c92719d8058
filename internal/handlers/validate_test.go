package handlers

import (
	"testing"

	"shoppersprint-alerts/internal/models"
)

func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }
func stringPtr(s string) *string    { return &s }

func TestValidateCreateAlert(t *testing.T) {
	t.Run("valid below alert", func(t *testing.T) {
		req := CreateAlertRequest{
			ProductID:   "prod-1",
			AlertType:   models.AlertTypeBelow,
			TargetPrice: int64Ptr(90000),
			Currency:    "USD",
		}
		if errs := validateCreateAlert(&req); errs != nil {
			t.Errorf("unexpected errors: %v", errs)
		}
	})

	t.Run("percentage without threshold", func(t *testing.T) {
		req := CreateAlertRequest{
			ProductID:   "prod-1",
			AlertType:   models.AlertTypePercentage,
			TargetPrice: int64Ptr(90000),
		}
		errs := validateCreateAlert(&req)
		if errs["threshold"] == "" {
			t.Errorf("expected a threshold error, got %v", errs)
		}
	})

	t.Run("threshold dropped for below alerts", func(t *testing.T) {
		req := CreateAlertRequest{
			ProductID:   "prod-1",
			AlertType:   models.AlertTypeBelow,
			TargetPrice: int64Ptr(90000),
			Threshold:   float64Ptr(10),
		}
		if errs := validateCreateAlert(&req); errs != nil {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if req.Threshold != nil {
			t.Error("threshold should be dropped for non-percentage alerts")
		}
	})

	t.Run("currency normalized to upper case", func(t *testing.T) {
		req := CreateAlertRequest{
			ProductID:   "prod-1",
			AlertType:   models.AlertTypeAbove,
			TargetPrice: int64Ptr(100),
			Currency:    "usd",
		}
		if errs := validateCreateAlert(&req); errs != nil {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if req.Currency != "USD" {
			t.Errorf("currency = %q, want USD", req.Currency)
		}
	})

	t.Run("currency defaults to USD", func(t *testing.T) {
		req := CreateAlertRequest{
			ProductID:   "prod-1",
			AlertType:   models.AlertTypeAbove,
			TargetPrice: int64Ptr(100),
		}
		if errs := validateCreateAlert(&req); errs != nil {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if req.Currency != "USD" {
			t.Errorf("currency = %q, want USD", req.Currency)
		}
	})

	t.Run("invalid currency", func(t *testing.T) {
		req := CreateAlertRequest{
			ProductID:   "prod-1",
			AlertType:   models.AlertTypeAbove,
			TargetPrice: int64Ptr(100),
			Currency:    "DOLLARS",
		}
		errs := validateCreateAlert(&req)
		if errs["currency"] == "" {
			t.Errorf("expected a currency error, got %v", errs)
		}
	})

	t.Run("missing required fields", func(t *testing.T) {
		req := CreateAlertRequest{}
		errs := validateCreateAlert(&req)
		for _, field := range []string{"product_id", "alert_type", "target_price"} {
			if errs[field] == "" {
				t.Errorf("expected an error for %s, got %v", field, errs)
			}
		}
	})

	t.Run("non-positive target price", func(t *testing.T) {
		req := CreateAlertRequest{
			ProductID:   "prod-1",
			AlertType:   models.AlertTypeBelow,
			TargetPrice: int64Ptr(0),
		}
		errs := validateCreateAlert(&req)
		if errs["target_price"] == "" {
			t.Errorf("expected a target_price error, got %v", errs)
		}
	})

	t.Run("unknown alert type", func(t *testing.T) {
		req := CreateAlertRequest{
			ProductID:   "prod-1",
			AlertType:   "weekly_digest",
			TargetPrice: int64Ptr(100),
		}
		errs := validateCreateAlert(&req)
		if errs["alert_type"] == "" {
			t.Errorf("expected an alert_type error, got %v", errs)
		}
	})
}

func TestValidateUpdateAlert(t *testing.T) {
	t.Run("empty patch", func(t *testing.T) {
		req := UpdateAlertRequest{}
		if errs := validateUpdateAlert(&req); errs != nil {
			t.Errorf("unexpected errors: %v", errs)
		}
	})

	t.Run("invalid alert type", func(t *testing.T) {
		req := UpdateAlertRequest{AlertType: stringPtr("sometimes")}
		if errs := validateUpdateAlert(&req); errs["alert_type"] == "" {
			t.Errorf("expected an alert_type error, got %v", errs)
		}
	})

	t.Run("non-positive target price", func(t *testing.T) {
		req := UpdateAlertRequest{TargetPrice: int64Ptr(-5)}
		if errs := validateUpdateAlert(&req); errs["target_price"] == "" {
			t.Errorf("expected a target_price error, got %v", errs)
		}
	})

	t.Run("non-positive threshold", func(t *testing.T) {
		req := UpdateAlertRequest{Threshold: float64Ptr(0)}
		if errs := validateUpdateAlert(&req); errs["threshold"] == "" {
			t.Errorf("expected a threshold error, got %v", errs)
		}
	})
}

func TestValidateAnonymousAlert(t *testing.T) {
	base := CreateAlertRequest{
		ProductID:   "prod-1",
		AlertType:   models.AlertTypeBelow,
		TargetPrice: int64Ptr(90000),
	}

	t.Run("valid request", func(t *testing.T) {
		req := AnonymousAlertRequest{CreateAlertRequest: base, Email: "shopper@example.com"}
		if errs := validateAnonymousAlert(&req); errs != nil {
			t.Errorf("unexpected errors: %v", errs)
		}
	})

	t.Run("missing email", func(t *testing.T) {
		req := AnonymousAlertRequest{CreateAlertRequest: base}
		if errs := validateAnonymousAlert(&req); errs["email"] == "" {
			t.Errorf("expected an email error, got %v", errs)
		}
	})

	t.Run("malformed email", func(t *testing.T) {
		req := AnonymousAlertRequest{CreateAlertRequest: base, Email: "not-an-address"}
		if errs := validateAnonymousAlert(&req); errs["email"] == "" {
			t.Errorf("expected an email error, got %v", errs)
		}
	})

	t.Run("alert fields still checked", func(t *testing.T) {
		req := AnonymousAlertRequest{Email: "shopper@example.com"}
		if errs := validateAnonymousAlert(&req); errs["product_id"] == "" {
			t.Errorf("expected a product_id error, got %v", errs)
		}
	})
}

func TestValidatePreferences(t *testing.T) {
	t.Run("empty patch", func(t *testing.T) {
		req := UpdatePreferencesRequest{}
		if errs := validatePreferences(&req); errs != nil {
			t.Errorf("unexpected errors: %v", errs)
		}
	})

	t.Run("quiet hours as a valid pair", func(t *testing.T) {
		req := UpdatePreferencesRequest{
			QuietHoursStart: stringPtr("22:00"),
			QuietHoursEnd:   stringPtr("06:00"),
		}
		if errs := validatePreferences(&req); errs != nil {
			t.Errorf("unexpected errors: %v", errs)
		}
	})

	t.Run("quiet hours cleared with empty pair", func(t *testing.T) {
		req := UpdatePreferencesRequest{
			QuietHoursStart: stringPtr(""),
			QuietHoursEnd:   stringPtr(""),
		}
		if errs := validatePreferences(&req); errs != nil {
			t.Errorf("unexpected errors: %v", errs)
		}
	})

	t.Run("start without end", func(t *testing.T) {
		req := UpdatePreferencesRequest{QuietHoursStart: stringPtr("22:00")}
		if errs := validatePreferences(&req); errs["quiet_hours"] == "" {
			t.Errorf("expected a quiet_hours pairing error, got %v", errs)
		}
	})

	t.Run("malformed bound", func(t *testing.T) {
		req := UpdatePreferencesRequest{
			QuietHoursStart: stringPtr("10pm"),
			QuietHoursEnd:   stringPtr("06:00"),
		}
		if errs := validatePreferences(&req); errs["quiet_hours_start"] == "" {
			t.Errorf("expected a quiet_hours_start error, got %v", errs)
		}
	})

	t.Run("half-cleared pair", func(t *testing.T) {
		req := UpdatePreferencesRequest{
			QuietHoursStart: stringPtr(""),
			QuietHoursEnd:   stringPtr("06:00"),
		}
		if errs := validatePreferences(&req); errs["quiet_hours_start"] == "" {
			t.Errorf("expected a quiet_hours_start error, got %v", errs)
		}
	})

	t.Run("currency normalized", func(t *testing.T) {
		req := UpdatePreferencesRequest{Currency: stringPtr("eur")}
		if errs := validatePreferences(&req); errs != nil {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if *req.Currency != "EUR" {
			t.Errorf("currency = %q, want EUR", *req.Currency)
		}
	})

	t.Run("empty timezone", func(t *testing.T) {
		req := UpdatePreferencesRequest{Timezone: stringPtr("")}
		if errs := validatePreferences(&req); errs["timezone"] == "" {
			t.Errorf("expected a timezone error, got %v", errs)
		}
	})
}
