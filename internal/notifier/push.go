package notifier

import (
	"context"
	"encoding/json"

	"shoppersprint-alerts/internal/cache"
	"shoppersprint-alerts/internal/models"
)

// RedisPush publishes notifications on the Redis pub/sub channel the API
// instances relay to their websocket sessions.
type RedisPush struct{}

func (RedisPush) Push(ctx context.Context, notification *models.AlertNotification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return cache.PublishMessage(ctx, "price_alerts", string(payload))
}
