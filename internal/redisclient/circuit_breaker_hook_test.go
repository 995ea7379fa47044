package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	hook := newCircuitBreakerHook("test", 3, time.Hour)
	ctx := context.Background()

	calls := 0
	failing := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		calls++
		return errors.New("connection refused")
	})

	for i := 0; i < 3; i++ {
		err := failing(ctx, goredis.NewIntCmd(ctx, "incr", "k"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, circuitbreaker.OpenState, hook.State())

	cmd := goredis.NewIntCmd(ctx, "incr", "k")
	err := failing(ctx, cmd)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, cmd.Err(), ErrCircuitOpen)
	assert.Equal(t, 3, calls, "open breaker does not reach the server")
}

func TestCircuitBreakerTreatsNilReplyAsSuccess(t *testing.T) {
	hook := newCircuitBreakerHook("test", 2, time.Hour)
	ctx := context.Background()

	missing := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		return goredis.Nil
	})
	for i := 0; i < 5; i++ {
		err := missing(ctx, goredis.NewStringCmd(ctx, "get", "k"))
		assert.ErrorIs(t, err, goredis.Nil)
	}
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerGuardsPipelines(t *testing.T) {
	hook := newCircuitBreakerHook("test", 1, time.Hour)
	ctx := context.Background()

	pipeline := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error {
		return errors.New("timeout")
	})
	require.Error(t, pipeline(ctx, nil))
	assert.ErrorIs(t, pipeline(ctx, nil), ErrCircuitOpen)
}
