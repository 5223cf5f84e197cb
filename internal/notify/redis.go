// Package notify announces written tracks on Redis.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jengzang/gpx-tracks-etl/internal/pipeline"
)

// DefaultChannel is used when no channel is configured
const DefaultChannel = "gpx:tracks"

// historyLimit caps the list of recent track reports
const historyLimit = 100

// Config holds the Redis connection settings
type Config struct {
	Addr     string
	Password string
	Channel  string
}

// Connect returns nil when no address is configured
func Connect(cfg Config) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})
}

// RedisNotifier publishes a JSON track report per written track and keeps
// the most recent reports in a capped list.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier wraps client. An empty channel falls back to DefaultChannel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

// HistoryKey is the list holding recent reports
func (n *RedisNotifier) HistoryKey() string {
	return n.channel + ":recent"
}

// Notify implements pipeline.Notifier
func (n *RedisNotifier) Notify(ctx context.Context, report pipeline.TrackReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode track report: %w", err)
	}

	_, err = n.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, n.channel, payload)
		pipe.LPush(ctx, n.HistoryKey(), payload)
		pipe.LTrim(ctx, n.HistoryKey(), 0, historyLimit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish track report: %w", err)
	}
	return nil
}

// Recent returns up to limit of the latest reports, newest first
func (n *RedisNotifier) Recent(ctx context.Context, limit int64) ([]pipeline.TrackReport, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}

	raw, err := n.client.LRange(ctx, n.HistoryKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent reports: %w", err)
	}

	reports := make([]pipeline.TrackReport, 0, len(raw))
	for _, item := range raw {
		var r pipeline.TrackReport
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("failed to decode track report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}
