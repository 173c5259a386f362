package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRun(t *testing.T) {
	t.Run("uses interval after success and retry delay after failure", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		s := NewScheduler(5*time.Minute, time.Minute, logger.WithField("component", "scheduler"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var waits []time.Duration
		s.Wait = func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			if len(waits) == 3 {
				cancel()
				return ctx.Err()
			}
			return nil
		}

		results := []error{nil, errors.New("db down"), nil}
		calls := 0
		err := s.Run(ctx, func(context.Context) error {
			err := results[calls]
			calls++
			return err
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{5 * time.Minute, time.Minute, 5 * time.Minute}, waits)
	})

	t.Run("stops when cycle is cancelled", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		s := NewScheduler(time.Hour, time.Hour, logger.WithField("component", "scheduler"))
		s.Wait = func(context.Context, time.Duration) error {
			t.Fatal("wait should not be reached")
			return nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		err := s.Run(ctx, func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		})
		require.NoError(t, err)
	})
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
