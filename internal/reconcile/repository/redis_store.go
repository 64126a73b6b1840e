package repository

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	reconciledomain "github.com/ledgerlinklabs/ledgerlink/internal/reconcile/domain"
)

const snapshotKeyPrefix = "ledgerlink:snapshot:"

// RedisStore layers write-through persistence over the in-memory store so a
// web-tier restart keeps last-known-good data. Redis failures degrade to
// memory-only: serving a read never depends on Redis being up.
type RedisStore struct {
	mem    *MemoryStore
	client *redis.Client
	log    *zap.Logger
}

func NewRedisStore(mem *MemoryStore, client *redis.Client, log *zap.Logger) *RedisStore {
	return &RedisStore{
		mem:    mem,
		client: client,
		log:    log.Named("reconcile.snapshots.redis"),
	}
}

// Hydrate loads persisted snapshots into memory. Called once at startup.
func (r *RedisStore) Hydrate(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, snapshotKeyPrefix+"*", 0).Iterator()
	loaded := 0
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			r.log.Warn("discarding undecodable snapshot", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		// Data from a previous process is stale by definition until the
		// next cycle confirms it.
		snap.Stale = true
		r.mem.replace(snap)
		loaded++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if loaded > 0 {
		r.log.Info("hydrated snapshots from redis", zap.Int("count", loaded))
	}
	return nil
}

func (r *RedisStore) Merge(ctx context.Context, set reconciledomain.AggregatedInvoiceSet) error {
	if err := r.mem.Merge(ctx, set); err != nil {
		return err
	}
	for _, outcome := range set.Outcomes {
		snap, ok, _ := r.mem.Get(ctx, outcome.MappingID)
		if !ok {
			continue
		}
		if err := r.persist(ctx, snap); err != nil {
			r.log.Warn("snapshot persist failed", zap.Error(err), zap.String("mapping_id", outcome.MappingID.String()))
		}
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, mappingID snowflake.ID) (Snapshot, bool, error) {
	return r.mem.Get(ctx, mappingID)
}

func (r *RedisStore) All(ctx context.Context) ([]Snapshot, error) {
	return r.mem.All(ctx)
}

func (r *RedisStore) Evict(ctx context.Context, mappingID snowflake.ID) error {
	if err := r.mem.Evict(ctx, mappingID); err != nil {
		return err
	}
	if err := r.client.Del(ctx, snapshotKey(mappingID)).Err(); err != nil {
		r.log.Warn("snapshot delete failed", zap.Error(err), zap.String("mapping_id", mappingID.String()))
	}
	return nil
}

// Ping reports whether the persistence layer is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) persist(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, snapshotKey(snap.MappingID), raw, 0).Err()
}

func snapshotKey(id snowflake.ID) string {
	var b strings.Builder
	b.WriteString(snapshotKeyPrefix)
	b.WriteString(id.String())
	return b.String()
}
