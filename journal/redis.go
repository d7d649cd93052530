package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "masp:deployments"

// Redis pushes entries as JSON onto a capped list, newest first.
type Redis struct {
	client *redis.Client
	key    string
	max    int64
}

func NewRedis(client *redis.Client, key string, max int64) *Redis {
	if key == "" {
		key = DefaultKey
	}
	if max <= 0 {
		max = 1000
	}
	return &Redis{client: client, key: key, max: max}
}

// Dial connects to addr and verifies it answers PING.
func Dial(ctx context.Context, addr, key string, max int64) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedis(client, key, max), nil
}

func (r *Redis) Record(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, raw)
	pipe.LTrim(ctx, r.key, 0, r.max-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record %s: %w", e.SessionID, err)
	}
	return nil
}

// Recent returns up to n entries, newest first. n <= 0 returns them all.
func (r *Redis) Recent(ctx context.Context, n int64) ([]Entry, error) {
	if n <= 0 {
		n = 0
	}
	raws, err := r.client.LRange(ctx, r.key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Redis) Close() error { return r.client.Close() }
