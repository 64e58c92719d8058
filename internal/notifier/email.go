package notifier

import (
	"context"

	"shoppersprint-alerts/internal/logger"
	"shoppersprint-alerts/internal/models"

	"go.uber.org/zap"
)

// LogEmailer records email deliveries in the service log. It stands in for
// a transactional mail provider.
type LogEmailer struct{}

func (LogEmailer) Email(ctx context.Context, recipient string, notification *models.AlertNotification) error {
	logger.Log.Info("Email notification sent",
		zap.String("recipient", recipient),
		zap.String("alert_id", notification.AlertID),
		zap.String("product_name", notification.ProductName),
		zap.Int64("current_price", notification.CurrentPrice),
		zap.Int64("target_price", notification.TargetPrice),
	)
	return nil
}

// SendVerification emails the activation token for a pending anonymous
// alert. The token is the whole message.
func (LogEmailer) SendVerification(ctx context.Context, recipient, alertID, token string) error {
	logger.Log.Info("Verification email sent",
		zap.String("recipient", recipient),
		zap.String("alert_id", alertID),
		zap.String("token", token),
	)
	return nil
}
