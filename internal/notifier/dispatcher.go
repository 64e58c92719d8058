// Package notifier turns a triggered alert into notification deliveries,
// honoring the owner's notification preferences. Delivery is fire and
// forget: channel failures are logged and never retried.
package notifier

import (
	"context"
	"errors"
	"time"

	"shoppersprint-alerts/internal/database"
	"shoppersprint-alerts/internal/logger"
	"shoppersprint-alerts/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Dispatch outcomes.
const (
	StatusDelivered  = "delivered"
	StatusSuppressed = "suppressed"

	ReasonQuietHours    = "quiet_hours"
	ReasonNoPreferences = "no_preferences"

	ChannelPush  = "push"
	ChannelEmail = "email"
)

var (
	alertsTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_triggered_total",
			Help: "Number of alerts whose trigger condition was met",
		},
		[]string{"alert_type"},
	)
	dispatchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_dispatch_outcomes_total",
			Help: "Dispatch outcomes by status and suppression reason",
		},
		[]string{"status", "reason"},
	)
)

func init() {
	prometheus.MustRegister(alertsTriggeredTotal, dispatchOutcomesTotal)
}

// Outcome describes what the dispatcher did with one triggered alert.
// Channels lists the channels a delivery was attempted on; a delivered
// outcome with no channels means the owner disabled every channel.
type Outcome struct {
	Status   string
	Reason   string
	Channels []string
}

// PreferencesFunc loads a user's notification preferences. Missing
// preferences are reported as database.ErrPreferencesNotFound.
type PreferencesFunc func(ctx context.Context, userID string) (*models.NotificationPreferences, error)

// Pusher delivers a notification to the realtime channel.
type Pusher interface {
	Push(ctx context.Context, notification *models.AlertNotification) error
}

// Emailer delivers a notification to an email address.
type Emailer interface {
	Email(ctx context.Context, recipient string, notification *models.AlertNotification) error
}

// Dispatcher routes triggered alerts to the owner's enabled channels.
type Dispatcher struct {
	prefs   PreferencesFunc
	pusher  Pusher
	emailer Emailer
	now     func() time.Time
}

// New constructs a Dispatcher around its collaborators.
func New(prefs PreferencesFunc, pusher Pusher, emailer Emailer) *Dispatcher {
	return &Dispatcher{
		prefs:   prefs,
		pusher:  pusher,
		emailer: emailer,
		now:     time.Now,
	}
}

// Dispatch delivers one triggered alert at most once. Users without stored
// preferences get nothing, quiet hours suppress everything, and otherwise
// each enabled channel gets one attempt. The email channel additionally
// needs a contact address on the alert. Channel errors are logged, not
// returned; the attempt still counts.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.PriceAlert, notification *models.AlertNotification) Outcome {
	alertsTriggeredTotal.WithLabelValues(notification.AlertType).Inc()

	prefs, err := d.prefs(ctx, alert.UserID)
	if err != nil {
		if !errors.Is(err, database.ErrPreferencesNotFound) {
			logger.Log.Warn("Preferences lookup failed, suppressing notification",
				zap.String("user_id", alert.UserID),
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
		}
		return d.finish(Outcome{Status: StatusSuppressed, Reason: ReasonNoPreferences})
	}

	if inQuietHours(d.now(), prefs.QuietHoursStart, prefs.QuietHoursEnd) {
		logger.Log.Info("Notification suppressed by quiet hours",
			zap.String("user_id", alert.UserID),
			zap.String("alert_id", alert.ID),
		)
		return d.finish(Outcome{Status: StatusSuppressed, Reason: ReasonQuietHours})
	}

	var channels []string

	if prefs.NotificationPush {
		if err := d.pusher.Push(ctx, notification); err != nil {
			logger.Log.Error("Push delivery failed",
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
		}
		channels = append(channels, ChannelPush)
	}

	if prefs.NotificationEmail && alert.ContactEmail != nil {
		if err := d.emailer.Email(ctx, *alert.ContactEmail, notification); err != nil {
			logger.Log.Error("Email delivery failed",
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
		}
		channels = append(channels, ChannelEmail)
	}

	return d.finish(Outcome{Status: StatusDelivered, Channels: channels})
}

func (d *Dispatcher) finish(out Outcome) Outcome {
	dispatchOutcomesTotal.WithLabelValues(out.Status, out.Reason).Inc()
	return out
}
