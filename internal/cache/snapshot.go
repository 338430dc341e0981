package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resolveit/escalation-monitor/internal/domain"
)

var ErrCacheMiss = errors.New("snapshot not cached")

const snapshotKey = "resolveit:escalation:snapshot"

// SnapshotCache 把最近一次应用的快照存进 redis，监控进程重启后先用它提供数据
type SnapshotCache struct {
	client  redis.Cmdable
	ttl     time.Duration
	timeout time.Duration
}

func NewSnapshotCache(client redis.Cmdable, ttl, timeout time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl, timeout: timeout}
}

func (c *SnapshotCache) Save(ctx context.Context, snapshot domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

func (c *SnapshotCache) Load(ctx context.Context) (*domain.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("load cached snapshot: %w", err)
	}

	snapshot := &domain.Snapshot{}
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return snapshot, nil
}

func (c *SnapshotCache) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.client.Del(ctx, snapshotKey).Err()
}
