package store

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper runs a background goroutine that periodically removes expired
// entries from backends without native expiry. It stops when ctx is done.
func StartSweeper(ctx context.Context, s Sweeper, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		logger.Info("Store sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, s, logger)
			case <-ctx.Done():
				logger.Info("Store sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, s Sweeper, logger *slog.Logger) {
	deleted, err := s.DeleteExpired(ctx, time.Now())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("Store sweeper failed to delete expired records", "error", err)
		return
	}
	if deleted > 0 {
		logger.Info("Store sweeper removed expired records", "count", deleted)
	}
}
