package dbretry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Yellow-Beans/Booty/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// errLocked mimics a model error: taxonomy sentinel plus driver detail.
var errLocked = fmt.Errorf("failed to get member ids: %w: %w",
	types.ErrStorageUnavailable, errors.New("database is locked"))

// withFastPolicy shrinks the package backoff policy so retry tests finish in
// milliseconds. Tests that mutate the policy must not run in parallel.
func withFastPolicy(t *testing.T) {
	t.Helper()

	origElapsed, origInitial := maxElapsedTime, initialInterval
	origMax, origRetries := maxInterval, maxRetries

	maxElapsedTime = 100 * time.Millisecond
	initialInterval = time.Millisecond
	maxInterval = 5 * time.Millisecond
	maxRetries = 3

	t.Cleanup(func() {
		maxElapsedTime, initialInterval = origElapsed, origInitial
		maxInterval, maxRetries = origMax, origRetries
	})
}

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "storage unavailable",
			err:  types.ErrStorageUnavailable,
			want: true,
		},
		{
			name: "wrapped storage unavailable",
			err:  errLocked,
			want: true,
		},
		{
			name: "constraint violation",
			err:  fmt.Errorf("failed to upsert activity: %w", types.ErrConstraintViolation),
			want: false,
		},
		{
			name: "invalid argument",
			err:  types.ErrInvalidArgument,
			want: false,
		},
		{
			name: "context canceled",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "storage unavailable from canceled context",
			err:  fmt.Errorf("%w: %w", types.ErrStorageUnavailable, context.Canceled),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestOperation(t *testing.T) {
	withFastPolicy(t)
	ctx := context.Background()

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0

		result, err := Operation(ctx, func(context.Context) ([]uint64, error) {
			calls++
			return []uint64{1, 2}, nil
		})

		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2}, result)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0

		result, err := Operation(ctx, func(context.Context) (uint64, error) {
			calls++
			if calls < 3 {
				return 0, errLocked
			}
			return 42, nil
		})

		require.NoError(t, err)
		assert.Equal(t, uint64(42), result)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		calls := 0

		_, err := Operation(ctx, func(context.Context) (uint64, error) {
			calls++
			return 0, fmt.Errorf("failed to upsert activity: %w", types.ErrConstraintViolation)
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrConstraintViolation)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausts retries", func(t *testing.T) {
		calls := 0

		_, err := Operation(ctx, func(context.Context) (uint64, error) {
			calls++
			return 0, errLocked
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrStorageUnavailable)
		assert.Equal(t, 4, calls) // Initial + 3 retries
	})

	t.Run("stops once context is canceled", func(t *testing.T) {
		canceledCtx, cancel := context.WithCancel(ctx)
		cancel()

		calls := 0

		_, err := Operation(canceledCtx, func(context.Context) (uint64, error) {
			calls++
			return 0, errLocked
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestNoResult(t *testing.T) {
	withFastPolicy(t)
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0

		err := NoResult(ctx, func(context.Context) error {
			calls++
			if calls < 2 {
				return errLocked
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		calls := 0

		err := NoResult(ctx, func(context.Context) error {
			calls++
			return fmt.Errorf("failed to delete member: %w", types.ErrInvalidArgument)
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
		assert.Equal(t, 1, calls)
	})
}
