package events

import (
	"context"
	"encoding/json"
	"fmt"

	"pianote/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher sends committed auction events to Redis pub/sub,
// one channel per auction: <prefix>:<auction_id>.
type Publisher interface {
	Publish(ctx context.Context, event domain.AuctionEvent) error
}

type redisPublisher struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisPublisher creates a Publisher backed by client
func NewRedisPublisher(client *redis.Client, prefix string, logger *zap.Logger) Publisher {
	return &redisPublisher{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Channel returns the channel carrying events for one auction
func Channel(prefix, auctionID string) string {
	return fmt.Sprintf("%s:%s", prefix, auctionID)
}

func (p *redisPublisher) Publish(ctx context.Context, event domain.AuctionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	channel := Channel(p.prefix, event.AuctionID)
	receivers, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Auction event published",
		zap.String("channel", channel),
		zap.String("type", string(event.Type)),
		zap.Int64("receivers", receivers),
	)
	return nil
}
