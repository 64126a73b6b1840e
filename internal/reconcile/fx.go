package reconcile

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ledgerlinklabs/ledgerlink/internal/config"
	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/reconcile/repository"
	"github.com/ledgerlinklabs/ledgerlink/internal/reconcile/service"
)

var Module = fx.Module("reconcile",
	fx.Provide(provideStore),
	fx.Provide(func(s repository.Store) mappingdomain.SnapshotEvictor { return s }),
	fx.Provide(service.NewAggregator),
	fx.Provide(service.NewRefresher),
)

// provideStore picks the snapshot backend: memory-only by default, Redis
// write-through when an address is configured so restarts keep stale data.
func provideStore(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (repository.Store, error) {
	mem := repository.NewMemoryStore()
	if cfg.Redis.Addr == "" {
		return mem, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := repository.NewRedisStore(mem, client, log)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return err
			}
			return store.Hydrate(ctx)
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return store, nil
}
