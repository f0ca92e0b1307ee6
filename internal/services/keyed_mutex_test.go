package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coursehub/progress-service/internal/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	locks := NewKeyedMutex()
	key := models.ProgressKey{StudentID: 1, CourseID: 1}

	var (
		wg      sync.WaitGroup
		active  int32
		overlap int32
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(key)
			defer unlock()
			if atomic.AddInt32(&active, 1) > 1 {
				atomic.StoreInt32(&overlap, 1)
			}
			counter++
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), overlap)
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.size())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	locks := NewKeyedMutex()
	unlockFirst := locks.Lock(models.ProgressKey{StudentID: 1, CourseID: 1})
	defer unlockFirst()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock(models.ProgressKey{StudentID: 2, CourseID: 1})
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
	assert.Equal(t, 1, locks.size())
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name          string
		failures      []error
		maxRetries    int
		expectedCalls int
		expectedError error
	}{
		{name: "success first time", failures: nil, maxRetries: 3, expectedCalls: 1},
		{name: "conflict then success", failures: []error{models.ErrConcurrencyConflict}, maxRetries: 3, expectedCalls: 2},
		{
			name:          "conflicts exhaust retries",
			failures:      []error{models.ErrConcurrencyConflict, models.ErrConcurrencyConflict, models.ErrConcurrencyConflict},
			maxRetries:    2,
			expectedCalls: 3,
			expectedError: models.ErrConcurrencyConflict,
		},
		{
			name:          "other errors are not retried",
			failures:      []error{models.ErrStorageFailure},
			maxRetries:    3,
			expectedCalls: 1,
			expectedError: models.ErrStorageFailure,
		},
		{
			name:          "no retries configured",
			failures:      []error{models.ErrConcurrencyConflict},
			maxRetries:    0,
			expectedCalls: 1,
			expectedError: models.ErrConcurrencyConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := withRetry(context.Background(), zap.NewNop(), "test", tt.maxRetries, func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			assert.Equal(t, tt.expectedCalls, calls)
			if tt.expectedError != nil {
				assert.True(t, errors.Is(err, tt.expectedError))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withRetry(ctx, zap.NewNop(), "test", 5, func() error {
		calls++
		return models.ErrConcurrencyConflict
	})

	assert.ErrorIs(t, err, models.ErrConcurrencyConflict)
	assert.Equal(t, 1, calls)
}
