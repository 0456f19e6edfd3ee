package logger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
)

func newWarnLogger(t *testing.T) logger.Logger {
	t.Helper()

	l, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	return l
}

func TestFromContext_ReturnsStoredLogger(t *testing.T) {
	t.Parallel()

	base := newWarnLogger(t)
	reqLog := base.With(logger.String("request_id", "abc123"))

	ctx := logger.WithContext(context.Background(), reqLog)

	assert.Same(t, reqLog, logger.FromContext(ctx))
	assert.NotSame(t, base, logger.FromContext(ctx))
}

func TestFromContext_InnermostLoggerWins(t *testing.T) {
	t.Parallel()

	outer := newWarnLogger(t)
	inner := newWarnLogger(t)

	ctx := logger.WithContext(context.Background(), outer)
	ctx = logger.WithContext(ctx, inner)

	assert.Same(t, inner, logger.FromContext(ctx))
}

func TestFromContext_FallbackIsSharedAndUsable(t *testing.T) {
	t.Parallel()

	a := logger.FromContext(context.Background())
	b := logger.FromContext(context.Background())

	require.NotNil(t, a)
	assert.Same(t, a, b)

	a.Info("filtered at warn level")
	a.Warn("upstream degraded", logger.String("resource", "runReport:1"), logger.Error(errors.New("boom")))
}

func TestNop_WithReturnsItself(t *testing.T) {
	t.Parallel()

	nop := logger.NewNop()
	assert.Same(t, nop, nop.With(logger.Int("attempt", 2)))
	assert.NoError(t, nop.Sync())
}
