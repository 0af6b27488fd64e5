package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Guiss-Guiss/ScriptumAI/internal/config"
)

// Connect opens the configured store and waits until it answers a heartbeat,
// retrying up to cfg.MaxRetries times with a fixed delay.
func Connect(ctx context.Context, cfg config.VectorStoreConfig) (Store, error) {
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	delay := time.Duration(cfg.RetryDelay) * time.Second
	var lastErr error
	for i := 1; i <= attempts; i++ {
		store, err := New(cfg)
		if err == nil {
			if err = store.Heartbeat(ctx); err == nil {
				logutil.GetLogger(ctx).Info("vector store connected",
					zap.String("type", cfg.Type), zap.Int("attempt", i))
				return store, nil
			}
			_ = store.Close()
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("vector store connection failed",
			zap.String("type", cfg.Type), zap.Int("attempt", i), zap.Int("max_attempts", attempts), zap.Error(err))
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("connect vector store %s after %d attempts: %w", cfg.Type, attempts, lastErr)
}
