package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Ceiling(t *testing.T) {
	t.Parallel()

	l := NewLimiter(2, nil)
	require.NoError(t, l.Acquire(context.Background(), PriorityNormal))
	require.NoError(t, l.Acquire(context.Background(), PriorityNormal))
	assert.Equal(t, 2, l.Active())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l.Acquire(ctx, PriorityHigh), context.DeadlineExceeded)
	assert.Zero(t, l.Queued(), "abandoned waiter must leave the queue")

	l.Release()
	l.Release()
	assert.Zero(t, l.Active())
}

func TestLimiter_PriorityOrder(t *testing.T) {
	t.Parallel()

	l := NewLimiter(1, nil)
	require.NoError(t, l.Acquire(context.Background(), PriorityNormal))

	order := make(chan string, 3)
	enqueue := func(name string, p Priority, queued int) {
		go func() {
			if l.Acquire(context.Background(), p) == nil {
				order <- name
				l.Release()
			}
		}()
		require.Eventually(t, func() bool { return l.Queued() == queued }, time.Second, time.Millisecond)
	}

	enqueue("normal-1", PriorityNormal, 1)
	enqueue("normal-2", PriorityNormal, 2)
	enqueue("high", PriorityHigh, 3)

	l.Release()

	assert.Equal(t, "high", <-order)
	assert.Equal(t, "normal-1", <-order)
	assert.Equal(t, "normal-2", <-order)
}

func TestLimiter_OnChange(t *testing.T) {
	t.Parallel()

	var lastQueued, lastActive int
	l := NewLimiter(1, func(queued, active int) {
		lastQueued, lastActive = queued, active
	})

	require.NoError(t, l.Acquire(context.Background(), PriorityNormal))
	assert.Equal(t, 0, lastQueued)
	assert.Equal(t, 1, lastActive)

	l.Release()
	assert.Equal(t, 0, lastActive)
}
