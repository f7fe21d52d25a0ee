package store

import (
	"context"
	"fmt"

	"github.com/ashureev/newyears25/internal/config"
	"github.com/redis/go-redis/v9"
)

// Open creates the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return NewMemory(), nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		backend := NewRedis(client)
		if err := backend.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
		return backend, nil

	case config.StoreSQLite:
		backend, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return backend, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDriver, cfg.Driver)
	}
}
