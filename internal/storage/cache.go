package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"margin-borrow-alerts/internal/margin"
)

const (
	snapshotKeyPrefix  = "margin-data-"
	lastAlertKeyPrefix = "last-alert-"
)

// SnapshotCache is the external key/value store snapshots and alert
// timestamps survive restarts in. A missing key is a normal empty
// result, never an error.
type SnapshotCache interface {
	BulkWrite(ctx context.Context, snapshots []margin.Snapshot) error
	ReadAll(ctx context.Context) ([]margin.Snapshot, error)
	LastAlertAt(ctx context.Context, asset string) (time.Time, bool, error)
	SetLastAlertAt(ctx context.Context, asset string, at time.Time) error
}

// RedisOptions parameterise the Redis cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache implements SnapshotCache over Redis.
type RedisCache struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisCache connects to Redis and fails fast when the server is
// unreachable.
func NewRedisCache(ctx context.Context, opts RedisOptions, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisCache{
		client: client,
		logger: logger.With().Str("component", "snapshot_cache").Logger(),
	}, nil
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// BulkWrite persists the batch in a single MSET so a partially
// written cycle is never observable.
func (c *RedisCache) BulkWrite(ctx context.Context, snapshots []margin.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	pairs := make([]interface{}, 0, len(snapshots)*2)
	for _, snapshot := range snapshots {
		value, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("encode snapshot for %s: %w", snapshot.Asset, err)
		}
		pairs = append(pairs, snapshotKeyPrefix+snapshot.Asset, value)
	}

	if err := c.client.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("bulk write snapshots: %w", err)
	}
	return nil
}

// ReadAll returns every persisted snapshot; an empty cache yields an
// empty slice.
func (c *RedisCache) ReadAll(ctx context.Context) ([]margin.Snapshot, error) {
	keys, err := c.client.Keys(ctx, snapshotKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshot keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}

	snapshots := make([]margin.Snapshot, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var snapshot margin.Snapshot
		if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", keys[i], err)
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// LastAlertAt returns the asset's last alert timestamp; the second
// return is false when none was ever recorded.
func (c *RedisCache) LastAlertAt(ctx context.Context, asset string) (time.Time, bool, error) {
	value, err := c.client.Get(ctx, lastAlertKeyPrefix+asset).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read last alert time: %w", err)
	}

	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last alert time %q: %w", value, err)
	}
	return at.UTC(), true, nil
}

// SetLastAlertAt records the asset's last alert timestamp.
func (c *RedisCache) SetLastAlertAt(ctx context.Context, asset string, at time.Time) error {
	value := at.UTC().Format(time.RFC3339)
	if err := c.client.Set(ctx, lastAlertKeyPrefix+asset, value, 0).Err(); err != nil {
		return fmt.Errorf("write last alert time: %w", err)
	}
	return nil
}

var _ SnapshotCache = (*RedisCache)(nil)
