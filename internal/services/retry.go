package services

import (
	"context"
	"errors"
	"time"

	"github.com/coursehub/progress-service/internal/models"
	"go.uber.org/zap"
)

// DefaultMaxRetries is the number of extra attempts made after a concurrency conflict
const DefaultMaxRetries = 3

const retryBaseDelay = 20 * time.Millisecond

// withRetry runs fn again while it fails with models.ErrConcurrencyConflict, at most maxRetries extra times.
// Any other error is returned immediately.
func withRetry(ctx context.Context, logger *zap.Logger, operation string, maxRetries int, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, models.ErrConcurrencyConflict) || attempt >= maxRetries {
			return err
		}

		logger.Warn("concurrency conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt+1) * retryBaseDelay):
		}
	}
}
