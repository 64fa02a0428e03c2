package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/logger"
)

const (
	// GatewayQueue holds raw gateway webhook payloads that could not be
	// reconciled inline and need background retry.
	GatewayQueue = "gateway_webhook_events"
	// MirrorQueue holds replication notices for the mirror store.
	MirrorQueue = "mirror_sync_events"
	FailedQueue = "failed_ledger_events"
)

type RedisClient struct {
	Client *redis.Client
}

// SyncEvent tells the mirror coordinator which primary-store record changed.
type SyncEvent struct {
	Kind      string    `json:"kind"` // "wallet" or "transaction"
	RecordID  string    `json:"record_id"`
	WalletID  string    `json:"wallet_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRedisClient(cfg config.Config) *RedisClient {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("Failed to parse Redis url", logger.Fields{"error": err.Error(), "url": cfg.RedisURL})
		opt = &redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       0,
		}
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", logger.Fields{"error": err.Error(), "url": cfg.RedisURL})
	} else {
		logger.Info("Connected to Redis", logger.Fields{"url": cfg.RedisURL})
	}

	return &RedisClient{Client: rdb}
}

func (r *RedisClient) PublishGatewayRetry(ctx context.Context, rawPayload []byte) error {
	if err := r.Client.RPush(ctx, GatewayQueue, rawPayload).Err(); err != nil {
		return fmt.Errorf("failed to push gateway event to redis: %v", err)
	}
	return nil
}

func (r *RedisClient) PublishSyncEvent(ctx context.Context, event SyncEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal sync event: %v", err)
	}

	if err := r.Client.RPush(ctx, MirrorQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to push sync event to redis: %v", err)
	}

	return nil
}

func (r *RedisClient) PushToDLQ(ctx context.Context, data []byte) error {
	if err := r.Client.RPush(ctx, FailedQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to push event to DLQ: %v", err)
	}
	return nil
}
