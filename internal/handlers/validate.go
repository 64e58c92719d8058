package handlers

import (
	"net/mail"
	"strings"

	"shoppersprint-alerts/internal/models"
	"shoppersprint-alerts/internal/notifier"
)

// ValidationErrors maps a request field to what is wrong with it.
type ValidationErrors map[string]string

// validateCreateAlert checks a create request and normalizes it in place:
// currency is uppercased and defaulted, and a threshold supplied for a
// non-percentage type is dropped rather than rejected.
func validateCreateAlert(req *CreateAlertRequest) ValidationErrors {
	errs := make(ValidationErrors)

	if req.ProductID == "" {
		errs["product_id"] = "product_id is required"
	}

	if req.AlertType == "" {
		errs["alert_type"] = "alert_type is required"
	} else if !models.ValidAlertType(req.AlertType) {
		errs["alert_type"] = "alert_type must be one of: below, above, percentage"
	}

	if req.TargetPrice == nil {
		errs["target_price"] = "target_price is required"
	} else if *req.TargetPrice <= 0 {
		errs["target_price"] = "target_price must be a positive amount in minor units"
	}

	if req.AlertType == models.AlertTypePercentage {
		if req.Threshold == nil {
			errs["threshold"] = "threshold is required for percentage alerts"
		} else if *req.Threshold <= 0 {
			errs["threshold"] = "threshold must be greater than zero"
		}
	} else {
		req.Threshold = nil
	}

	if req.Currency == "" {
		req.Currency = "USD"
	} else {
		req.Currency = strings.ToUpper(req.Currency)
		if !validCurrency(req.Currency) {
			errs["currency"] = "currency must be a 3-letter code"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validateUpdateAlert checks the fields present in a partial update.
func validateUpdateAlert(req *UpdateAlertRequest) ValidationErrors {
	errs := make(ValidationErrors)

	if req.AlertType != nil && !models.ValidAlertType(*req.AlertType) {
		errs["alert_type"] = "alert_type must be one of: below, above, percentage"
	}

	if req.TargetPrice != nil && *req.TargetPrice <= 0 {
		errs["target_price"] = "target_price must be a positive amount in minor units"
	}

	if req.Threshold != nil && *req.Threshold <= 0 {
		errs["threshold"] = "threshold must be greater than zero"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validateAnonymousAlert extends create validation with the email the
// verification token goes to.
func validateAnonymousAlert(req *AnonymousAlertRequest) ValidationErrors {
	errs := validateCreateAlert(&req.CreateAlertRequest)
	if errs == nil {
		errs = make(ValidationErrors)
	}

	if req.Email == "" {
		errs["email"] = "email is required"
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		errs["email"] = "email is not a valid address"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validatePreferences checks a preferences upsert. Quiet-hours bounds
// travel as a pair: both well-formed clocks to set a window, both empty
// strings to clear it.
func validatePreferences(req *UpdatePreferencesRequest) ValidationErrors {
	errs := make(ValidationErrors)

	if (req.QuietHoursStart == nil) != (req.QuietHoursEnd == nil) {
		errs["quiet_hours"] = "quiet_hours_start and quiet_hours_end must be supplied together"
	} else if req.QuietHoursStart != nil {
		start, end := *req.QuietHoursStart, *req.QuietHoursEnd
		clearing := start == "" && end == ""
		if !clearing {
			if !notifier.ValidClock(start) {
				errs["quiet_hours_start"] = "quiet_hours_start must be a HH:MM time"
			}
			if !notifier.ValidClock(end) {
				errs["quiet_hours_end"] = "quiet_hours_end must be a HH:MM time"
			}
		}
	}

	if req.Timezone != nil && *req.Timezone == "" {
		errs["timezone"] = "timezone must not be empty"
	}

	if req.Language != nil && *req.Language == "" {
		errs["language"] = "language must not be empty"
	}

	if req.Currency != nil {
		*req.Currency = strings.ToUpper(*req.Currency)
		if !validCurrency(*req.Currency) {
			errs["currency"] = "currency must be a 3-letter code"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
