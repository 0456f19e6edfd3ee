package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/clock"
)

func TestManual_AdvanceFiresDueWaiters(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 10, 24, 0, 0, 0, 0, time.UTC)
	c := clock.NewManual(start)

	short := c.After(time.Second)
	long := c.After(time.Minute)
	assert.Equal(t, 2, c.Waiters())

	c.Advance(2 * time.Second)

	select {
	case got := <-short:
		assert.Equal(t, start.Add(2*time.Second), got)
	default:
		t.Fatal("short waiter did not fire")
	}

	select {
	case <-long:
		t.Fatal("long waiter fired early")
	default:
	}
	assert.Equal(t, 1, c.Waiters())
}

func TestManual_ZeroDurationFiresImmediately(t *testing.T) {
	t.Parallel()

	c := clock.NewManual(time.Unix(0, 0))
	select {
	case <-c.After(0):
	default:
		t.Fatal("zero wait should be ready")
	}
}

func TestManual_BlockUntil(t *testing.T) {
	t.Parallel()

	c := clock.NewManual(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		<-c.After(time.Second)
		close(done)
	}()

	c.BlockUntil(1)
	c.Advance(time.Second)
	<-done
}
