package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/scrypster/lifecache/pkg/types"
)

// streamAdder is the part of *redis.Client the channel needs.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisChannel appends deliveries to a Redis stream. E-mail and SMS workers
// consume the stream and perform the final hop.
type RedisChannel struct {
	rdb    streamAdder
	client *redis.Client
	stream string
}

// NewRedisChannel connects to redisURL and verifies the connection.
func NewRedisChannel(ctx context.Context, redisURL, stream string) (*RedisChannel, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisChannel{rdb: rdb, client: rdb, stream: stream}, nil
}

// Name implements Channel.
func (c *RedisChannel) Name() string { return "redis" }

// Deliver implements Channel.
func (c *RedisChannel) Deliver(ctx context.Context, rec *types.Record, report *types.AnalysisReport) error {
	data, err := json.Marshal(NewPayload(rec, report))
	if err != nil {
		return wrapError(c.Name(), rec, err)
	}

	_, err = c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		Values: map[string]interface{}{
			"record_id": rec.ID,
			"data":      string(data),
		},
	}).Result()
	if err != nil {
		return wrapError(c.Name(), rec, fmt.Errorf("publish to %s: %w", c.stream, err))
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisChannel) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
