package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"shoppersprint-alerts/internal/logger"
	"shoppersprint-alerts/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

var db *sql.DB

// Store-level failures the HTTP layer maps to status codes.
var (
	ErrAlertNotFound        = errors.New("alert not found")
	ErrDuplicateActiveAlert = errors.New("an active alert already exists for this user and product")
	ErrPreferencesNotFound  = errors.New("notification preferences not configured")
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index over active (user_id, product_id) pairs.
const uniqueViolation = pq.ErrorCode("23505")

const alertColumns = "id, user_id, product_id, alert_type, target_price, threshold, currency, contact_email, is_active, created_at, updated_at"

const preferenceColumns = "user_id, notification_email, notification_push, quiet_hours_start, quiet_hours_end, timezone, language, currency, created_at, updated_at"

// InitDB initializes the database connection
func InitDB(connStr string) error {
	var err error
	db, err = sql.Open("postgres", connStr)
	if err != nil {
		return err
	}

	// Set connection pool parameters
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	logger.Log.Info("Database connection established")
	return nil
}

// Ping reports whether the connection is alive. Used by the health endpoint.
func Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Migrate creates the schema if it does not exist. The partial unique index
// enforces the one-active-alert-per-(user, product) invariant at the store
// level, so concurrent creates race safely.
func Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS price_alerts (
			id            UUID PRIMARY KEY,
			user_id       TEXT NOT NULL,
			product_id    TEXT NOT NULL,
			alert_type    TEXT NOT NULL,
			target_price  BIGINT NOT NULL,
			threshold     DOUBLE PRECISION,
			currency      TEXT NOT NULL,
			contact_email TEXT,
			is_active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS price_alerts_active_owner_idx
			ON price_alerts (user_id, product_id) WHERE is_active`,
		`CREATE INDEX IF NOT EXISTS price_alerts_product_active_idx
			ON price_alerts (product_id) WHERE is_active`,
		`CREATE TABLE IF NOT EXISTS notification_preferences (
			user_id            TEXT PRIMARY KEY,
			notification_email BOOLEAN NOT NULL DEFAULT TRUE,
			notification_push  BOOLEAN NOT NULL DEFAULT TRUE,
			quiet_hours_start  TEXT,
			quiet_hours_end    TEXT,
			timezone           TEXT NOT NULL DEFAULT 'UTC',
			language           TEXT NOT NULL DEFAULT 'en',
			currency           TEXT NOT NULL DEFAULT 'USD',
			created_at         TIMESTAMPTZ NOT NULL,
			updated_at         TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Log.Error("Migration statement failed", zap.Error(err))
			return err
		}
	}

	logger.Log.Info("Database schema ready")
	return nil
}

// CreateAlert inserts a new alert. A second active alert for the same
// (user, product) pair fails with ErrDuplicateActiveAlert.
func CreateAlert(ctx context.Context, alert *models.PriceAlert) error {
	query := `
		INSERT INTO price_alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := db.ExecContext(
		ctx,
		query,
		alert.ID,
		alert.UserID,
		alert.ProductID,
		alert.AlertType,
		alert.TargetPrice,
		alert.Threshold,
		alert.Currency,
		alert.ContactEmail,
		alert.IsActive,
		alert.CreatedAt,
		alert.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateActiveAlert
		}
		logger.Log.Error("Failed to create alert in database",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// GetAlertByIDForUser retrieves an alert owned by userID. Missing rows and
// rows owned by someone else both come back as ErrAlertNotFound so the
// response never leaks whether a foreign alert exists.
func GetAlertByIDForUser(ctx context.Context, id, userID string) (*models.PriceAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM price_alerts WHERE id = $1 AND user_id = $2`

	alert, err := scanAlert(db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		logger.Log.Error("Failed to retrieve alert",
			zap.String("alert_id", id),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	return alert, nil
}

// GetAlertsByUserID retrieves all alerts belonging to a user, newest first.
func GetAlertsByUserID(ctx context.Context, userID string) ([]*models.PriceAlert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM price_alerts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		logger.Log.Error("Failed to query alerts by user ID",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetAlertsByUserAndProduct retrieves a user's alerts for one product.
func GetAlertsByUserAndProduct(ctx context.Context, userID, productID string) ([]*models.PriceAlert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM price_alerts
		WHERE user_id = $1 AND product_id = $2
		ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query, userID, productID)
	if err != nil {
		logger.Log.Error("Failed to query alerts by user and product",
			zap.String("user_id", userID),
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ListActiveAlertsByProduct retrieves every active alert watching a product,
// in stable creation order. This is the evaluator's read path.
func ListActiveAlertsByProduct(ctx context.Context, productID string) ([]*models.PriceAlert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM price_alerts
		WHERE product_id = $1 AND is_active
		ORDER BY created_at
	`

	rows, err := db.QueryContext(ctx, query, productID)
	if err != nil {
		logger.Log.Error("Failed to query active alerts by product",
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// AlertPatch carries the fields of a partial update. Nil fields keep the
// stored value, except Threshold: the threshold column is always rewritten
// from the patch, so omitting it resets the stored threshold to NULL.
type AlertPatch struct {
	AlertType   *string
	TargetPrice *int64
	Threshold   *float64
	IsActive    *bool
}

// UpdateAlert applies a partial update to an alert owned by userID and
// returns the updated row. Field merging happens inside a single UPDATE so
// concurrent updates are last-write-wins per field as committed by the
// store. Reactivating an alert can collide with another active alert for
// the same pair, which surfaces as ErrDuplicateActiveAlert.
func UpdateAlert(ctx context.Context, id, userID string, patch AlertPatch) (*models.PriceAlert, error) {
	query := `
		UPDATE price_alerts
		SET alert_type = COALESCE($1, alert_type),
		    target_price = COALESCE($2, target_price),
		    threshold = $3,
		    is_active = COALESCE($4, is_active),
		    updated_at = $5
		WHERE id = $6 AND user_id = $7
		RETURNING ` + alertColumns + `
	`

	alert, err := scanAlert(db.QueryRowContext(
		ctx,
		query,
		patch.AlertType,
		patch.TargetPrice,
		patch.Threshold,
		patch.IsActive,
		time.Now(),
		id,
		userID,
	))

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateActiveAlert
		}
		logger.Log.Error("Failed to update alert",
			zap.String("alert_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	return alert, nil
}

// ActivateAlert flips an alert to active. Used by the email-verification
// flow, which has already authenticated the caller through the token.
func ActivateAlert(ctx context.Context, id string) (*models.PriceAlert, error) {
	query := `
		UPDATE price_alerts
		SET is_active = TRUE, updated_at = $1
		WHERE id = $2
		RETURNING ` + alertColumns + `
	`

	alert, err := scanAlert(db.QueryRowContext(ctx, query, time.Now(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateActiveAlert
		}
		logger.Log.Error("Failed to activate alert",
			zap.String("alert_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	return alert, nil
}

// DeleteAlert removes an alert owned by userID. Deleting a missing or
// foreign alert fails with ErrAlertNotFound; a second delete is not
// idempotent by design.
func DeleteAlert(ctx context.Context, id, userID string) error {
	query := `DELETE FROM price_alerts WHERE id = $1 AND user_id = $2`

	result, err := db.ExecContext(ctx, query, id, userID)
	if err != nil {
		logger.Log.Error("Failed to delete alert",
			zap.String("alert_id", id),
			zap.Error(err),
		)
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrAlertNotFound
	}

	return nil
}

// GetPreferences retrieves a user's notification preferences. A user who
// has never written preferences gets ErrPreferencesNotFound; this never
// auto-creates, so the dispatcher can tell "not configured" apart from
// defaults.
func GetPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	query := `SELECT ` + preferenceColumns + ` FROM notification_preferences WHERE user_id = $1`

	prefs, err := scanPreferences(db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPreferencesNotFound
		}
		logger.Log.Error("Failed to retrieve preferences",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	return prefs, nil
}

// PreferencesPatch carries a partial preferences update. Nil fields keep
// the stored value. Quiet-hours bounds are written as a pair, and only when
// QuietHoursProvided is set; providing nil bounds clears the window.
type PreferencesPatch struct {
	NotificationEmail  *bool
	NotificationPush   *bool
	QuietHoursProvided bool
	QuietHoursStart    *string
	QuietHoursEnd      *string
	Timezone           *string
	Language           *string
	Currency           *string
}

// UpsertPreferences creates the user's preferences row with defaults on
// first write and merges the patch into it, returning the resulting row.
func UpsertPreferences(ctx context.Context, userID string, patch PreferencesPatch) (*models.NotificationPreferences, error) {
	query := `
		INSERT INTO notification_preferences (` + preferenceColumns + `)
		VALUES ($1, COALESCE($2, TRUE), COALESCE($3, TRUE), $4, $5,
		        COALESCE($6, 'UTC'), COALESCE($7, 'en'), COALESCE($8, 'USD'), $9, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			notification_email = COALESCE($2, notification_preferences.notification_email),
			notification_push  = COALESCE($3, notification_preferences.notification_push),
			quiet_hours_start  = CASE WHEN $10 THEN $4 ELSE notification_preferences.quiet_hours_start END,
			quiet_hours_end    = CASE WHEN $10 THEN $5 ELSE notification_preferences.quiet_hours_end END,
			timezone = COALESCE($6, notification_preferences.timezone),
			language = COALESCE($7, notification_preferences.language),
			currency = COALESCE($8, notification_preferences.currency),
			updated_at = $9
		RETURNING ` + preferenceColumns + `
	`

	prefs, err := scanPreferences(db.QueryRowContext(
		ctx,
		query,
		userID,
		patch.NotificationEmail,
		patch.NotificationPush,
		patch.QuietHoursStart,
		patch.QuietHoursEnd,
		patch.Timezone,
		patch.Language,
		patch.Currency,
		time.Now(),
		patch.QuietHoursProvided,
	))

	if err != nil {
		logger.Log.Error("Failed to upsert preferences",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	return prefs, nil
}

// GetAlertStats returns the aggregate counts for the admin stats endpoint.
func GetAlertStats(ctx context.Context) (*models.AlertStats, error) {
	stats := &models.AlertStats{ByType: make(map[string]int64)}

	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM price_alerts`,
	).Scan(&stats.TotalAlerts, &stats.ActiveAlerts)
	if err != nil {
		logger.Log.Error("Failed to count alerts", zap.Error(err))
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT alert_type, COUNT(*) FROM price_alerts GROUP BY alert_type`,
	)
	if err != nil {
		logger.Log.Error("Failed to count alerts by type", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var alertType string
		var count int64
		if err := rows.Scan(&alertType, &count); err != nil {
			return nil, err
		}
		stats.ByType[alertType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_preferences`,
	).Scan(&stats.UsersWithPreferences)
	if err != nil {
		logger.Log.Error("Failed to count preferences", zap.Error(err))
		return nil, err
	}

	return stats, nil
}

// isUniqueViolation reports whether err is a Postgres unique-index
// violation, which the alert store maps to ErrDuplicateActiveAlert.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAlert maps one storage row onto a domain record. Nullable columns
// become pointer fields here and nowhere else.
func scanAlert(row rowScanner) (*models.PriceAlert, error) {
	var alert models.PriceAlert
	var threshold sql.NullFloat64
	var contactEmail sql.NullString

	err := row.Scan(
		&alert.ID,
		&alert.UserID,
		&alert.ProductID,
		&alert.AlertType,
		&alert.TargetPrice,
		&threshold,
		&alert.Currency,
		&contactEmail,
		&alert.IsActive,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if threshold.Valid {
		val := threshold.Float64
		alert.Threshold = &val
	}
	if contactEmail.Valid {
		val := contactEmail.String
		alert.ContactEmail = &val
	}

	return &alert, nil
}

// scanAlerts drains a result set through scanAlert.
func scanAlerts(rows *sql.Rows) ([]*models.PriceAlert, error) {
	var alerts []*models.PriceAlert

	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}

// scanPreferences maps one preferences row onto a domain record.
func scanPreferences(row rowScanner) (*models.NotificationPreferences, error) {
	var prefs models.NotificationPreferences
	var quietStart, quietEnd sql.NullString

	err := row.Scan(
		&prefs.UserID,
		&prefs.NotificationEmail,
		&prefs.NotificationPush,
		&quietStart,
		&quietEnd,
		&prefs.Timezone,
		&prefs.Language,
		&prefs.Currency,
		&prefs.CreatedAt,
		&prefs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if quietStart.Valid {
		val := quietStart.String
		prefs.QuietHoursStart = &val
	}
	if quietEnd.Valid {
		val := quietEnd.String
		prefs.QuietHoursEnd = &val
	}

	return &prefs, nil
}
