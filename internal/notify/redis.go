package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/sweeney/source-watcher/internal/logic"
)

// DefaultStream is the redis stream alerts are appended to.
const DefaultStream = "source-watcher:alerts"

// RedisStream appends alerts to a redis stream with XADD.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisStream creates a stream channel. maxLen > 0 trims the stream.
func NewRedisStream(client *redis.Client, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

// Name implements Channel.
func (r *RedisStream) Name() string { return "redis" }

// Notify appends one stream entry for the alert.
func (r *RedisStream) Notify(ctx context.Context, alert logic.AlertEvent) error {
	p := NewPayload(alert)
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"alert_id":  p.ID,
			"seq":       fmt.Sprintf("%d", p.Seq),
			"timestamp": p.Timestamp,
			"message":   p.Message,
			"snapshot":  p.Snapshot,
			"data":      string(data),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}

// Close closes the redis client.
func (r *RedisStream) Close() error {
	return r.client.Close()
}
