package client

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/capitalized/internal/config"
	"github.com/magabrotheeeer/capitalized/internal/lib/sealer"
	"github.com/magabrotheeeer/capitalized/internal/storage"
	"github.com/magabrotheeeer/capitalized/internal/storage/memory"
	"github.com/magabrotheeeer/capitalized/internal/storage/redisstore"
	"github.com/magabrotheeeer/capitalized/internal/storage/sqlite"
)

// openStorage открывает хранилище выбранного драйвера. При заданном
// секрете значения шифруются.
func openStorage(ctx context.Context, cfg *config.Config) (storage.KV, error) {
	const op = "client.openStorage"

	var kv storage.KV
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		kv = s
	case config.DriverRedis:
		s, err := redisstore.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		kv = s
	case config.DriverMemory:
		kv = memory.New()
	default:
		return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Driver)
	}

	if cfg.Secret == "" {
		return kv, nil
	}
	s, err := sealer.New(cfg.Secret)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return storage.NewSealed(kv, s), nil
}
