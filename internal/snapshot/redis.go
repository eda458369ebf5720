package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/logger"
	"github.com/raaihank/mask-sentinel/internal/privacy"
	"go.uber.org/zap"
)

// RedisStore keeps snapshots in Redis. Each snapshot is a JSON value under
// <prefix>:snapshot:<id>; a sorted set <prefix>:snapshots scored by creation
// time orders them for listing and eviction.
type RedisStore struct {
	client *redis.Client
	prefix string
	max    int
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg config.SnapshotConfig, log *logger.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	store := newRedisStore(redis.NewClient(opts), cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.client.Ping(ctx).Err(); err != nil {
		store.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Snapshot store initialized",
		zap.String("backend", "redis"),
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Int("max_snapshots", store.max),
		zap.Duration("ttl", store.ttl))

	return store, nil
}

// newRedisStore wraps an existing client; used by NewRedisStore and tests.
func newRedisStore(client *redis.Client, cfg config.SnapshotConfig, log *logger.Logger) *RedisStore {
	if log == nil {
		log = logger.NewNop()
	}
	max := cfg.MaxSnapshots
	if max <= 0 {
		max = DefaultMaxSnapshots
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "mask-sentinel"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		max:    max,
		ttl:    cfg.TTL,
		logger: log,
		now:    time.Now,
	}
}

// snapshotKey returns the key holding a snapshot's JSON value
func (rs *RedisStore) snapshotKey(id string) string {
	return fmt.Sprintf("%s:snapshot:%s", rs.prefix, id)
}

// indexKey returns the sorted set ordering snapshots by creation time
func (rs *RedisStore) indexKey() string {
	return rs.prefix + ":snapshots"
}

// Save stores a copy of mapping under a new ID and evicts the oldest
// snapshots beyond the cap.
func (rs *RedisStore) Save(ctx context.Context, name string, mapping *privacy.MappingTable) (*Snapshot, error) {
	snap := &Snapshot{
		ID:         uuid.NewString(),
		Name:       name,
		CreatedAt:  rs.now().UTC(),
		EntryCount: mapping.Len(),
		Mapping:    copyMapping(mapping),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Value and index entry are written atomically
	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, rs.snapshotKey(snap.ID), data, rs.ttl)
	pipe.ZAdd(ctx, rs.indexKey(), &redis.Z{
		Score:  float64(snap.CreatedAt.UnixNano()),
		Member: snap.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		rs.logger.Error("Failed to store snapshot", zap.Error(err))
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	if err := rs.evict(ctx); err != nil {
		// the snapshot itself is stored
		rs.logger.Warn("Snapshot eviction failed", zap.Error(err))
	}

	rs.logger.Debug("Snapshot stored",
		zap.String("snapshot_id", snap.ID),
		zap.String("name", name),
		zap.Int("entries", snap.EntryCount))

	return snap, nil
}

// evict removes the oldest snapshots beyond the cap.
func (rs *RedisStore) evict(ctx context.Context) error {
	count, err := rs.client.ZCard(ctx, rs.indexKey()).Result()
	if err != nil {
		return err
	}
	over := count - int64(rs.max)
	if over <= 0 {
		return nil
	}

	ids, err := rs.client.ZRange(ctx, rs.indexKey(), 0, over-1).Result()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	pipe := rs.client.Pipeline()
	keys := make([]string, len(ids))
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = rs.snapshotKey(id)
		members[i] = id
	}
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, rs.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	rs.logger.Debug("Evicted old snapshots", zap.Int("evicted", len(ids)))
	return nil
}

// Get loads a snapshot with its mapping table. Missing or expired
// snapshots return ErrNotFound.
func (rs *RedisStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	data, err := rs.client.Get(ctx, rs.snapshotKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		rs.logger.Error("Failed to unmarshal snapshot", zap.String("snapshot_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Mapping == nil {
		snap.Mapping = privacy.NewMappingTable()
	}
	return &snap, nil
}

// List returns snapshot metadata, newest first. Index entries whose value
// has expired are pruned on the way.
func (rs *RedisStore) List(ctx context.Context) ([]*Snapshot, error) {
	ids, err := rs.client.ZRevRange(ctx, rs.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(ids) == 0 {
		return []*Snapshot{}, nil
	}

	// Fetch all values in one round trip
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = rs.snapshotKey(id)
	}
	values, err := rs.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	out := make([]*Snapshot, 0, len(ids))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired through TTL; the index entry is left behind
			stale = append(stale, ids[i])
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			rs.logger.Warn("Skipping corrupt snapshot", zap.String("snapshot_id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, snap.Meta())
	}

	if len(stale) > 0 {
		if err := rs.client.ZRem(ctx, rs.indexKey(), stale...).Err(); err != nil {
			rs.logger.Warn("Failed to prune expired snapshots", zap.Error(err))
		}
	}

	return out, nil
}

// Delete removes a snapshot and its index entry.
func (rs *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := rs.client.TxPipeline()
	del := pipe.Del(ctx, rs.snapshotKey(id))
	pipe.ZRem(ctx, rs.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the Redis connection
func (rs *RedisStore) Close() error {
	if rs.client != nil {
		return rs.client.Close()
	}
	return nil
}

// maskRedisURL hides the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userInfo := url[:at]
	colon := strings.LastIndex(userInfo, ":")
	scheme := strings.Index(userInfo, "://")
	if colon < 0 || colon <= scheme+2 {
		return url
	}
	return userInfo[:colon+1] + "***" + url[at:]
}
