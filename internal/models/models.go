package models

import (
	"time"
)

// Alert rule types. Percentage alerts additionally carry a threshold in
// percentage points; below/above compare straight against the target price.
const (
	AlertTypeBelow      = "below"
	AlertTypeAbove      = "above"
	AlertTypePercentage = "percentage"
)

// PriceAlert is a user's standing rule against a product's price.
// Prices are integer currency minor units (cents). At most one active alert
// may exist per (user_id, product_id) pair; the store enforces this with a
// partial unique index.
type PriceAlert struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	ProductID    string    `json:"product_id" db:"product_id"`
	AlertType    string    `json:"alert_type" db:"alert_type"`
	TargetPrice  int64     `json:"target_price" db:"target_price"`
	Threshold    *float64  `json:"threshold,omitempty" db:"threshold"`
	Currency     string    `json:"currency" db:"currency"`
	ContactEmail *string   `json:"contact_email,omitempty" db:"contact_email"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// NotificationPreferences is the per-user delivery configuration, one row
// per user. Quiet-hours bounds are "HH:MM" wall-clock strings and are either
// both set or both NULL.
type NotificationPreferences struct {
	UserID            string    `json:"user_id" db:"user_id"`
	NotificationEmail bool      `json:"notification_email" db:"notification_email"`
	NotificationPush  bool      `json:"notification_push" db:"notification_push"`
	QuietHoursStart   *string   `json:"quiet_hours_start,omitempty" db:"quiet_hours_start"`
	QuietHoursEnd     *string   `json:"quiet_hours_end,omitempty" db:"quiet_hours_end"`
	Timezone          string    `json:"timezone" db:"timezone"`
	Language          string    `json:"language" db:"language"`
	Currency          string    `json:"currency" db:"currency"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Product is the read-only projection served by the external catalog.
type Product struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CurrentPrice int64  `json:"current_price"`
	Currency     string `json:"currency"`
}

// PriceUpdate is the Kafka message emitted by the price feed.
type PriceUpdate struct {
	ProductID string `json:"product_id"`
	Price     int64  `json:"price"`
	Currency  string `json:"currency"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// AlertNotification is the push-channel payload published to Redis and
// fanned out to connected realtime sessions.
type AlertNotification struct {
	AlertID      string   `json:"alert_id"`
	UserID       string   `json:"user_id"`
	ProductID    string   `json:"product_id"`
	ProductName  string   `json:"product_name"`
	TargetPrice  int64    `json:"target_price"`
	CurrentPrice int64    `json:"current_price"`
	Currency     string   `json:"currency"`
	AlertType    string   `json:"alert_type"`
	Threshold    *float64 `json:"threshold,omitempty"`
	TriggeredAt  string   `json:"triggered_at"`
}

// AlertStats are the aggregate counts served by the admin stats endpoint.
type AlertStats struct {
	TotalAlerts          int64            `json:"total_alerts"`
	ActiveAlerts         int64            `json:"active_alerts"`
	ByType               map[string]int64 `json:"by_type"`
	UsersWithPreferences int64            `json:"users_with_preferences"`
	ConnectedSessions    int              `json:"connected_sessions"`
}

// ValidAlertType reports whether t is one of the known rule types.
func ValidAlertType(t string) bool {
	switch t {
	case AlertTypeBelow, AlertTypeAbove, AlertTypePercentage:
		return true
	}
	return false
}
