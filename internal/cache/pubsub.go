package cache

import (
	"context"

	"shoppersprint-alerts/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PublishMessage publishes a message to a Redis channel. The worker's push
// channel uses this to reach every gateway instance's realtime hub.
func PublishMessage(ctx context.Context, channel string, message string) error {
	return RedisClient.Publish(ctx, channel, message).Err()
}

// RedisSubscriber wraps a subscription to a single Redis channel.
type RedisSubscriber struct {
	pubsub *redis.PubSub
}

// NewRedisSubscriber subscribes to channel and confirms the subscription.
func NewRedisSubscriber(channel string) (*RedisSubscriber, error) {
	ctx := context.Background()
	pubsub := RedisClient.Subscribe(ctx, channel)

	_, err := pubsub.Receive(ctx)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Subscribed to Redis channel", zap.String("channel", channel))
	return &RedisSubscriber{pubsub: pubsub}, nil
}

// ReceiveMessage waits for and returns the next message.
func (s *RedisSubscriber) ReceiveMessage(ctx context.Context) (*redis.Message, error) {
	return s.pubsub.ReceiveMessage(ctx)
}

// Close closes the subscription.
func (s *RedisSubscriber) Close() error {
	return s.pubsub.Close()
}
