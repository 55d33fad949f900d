package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PerKeyLimit(t *testing.T) {
	l := NewLocal(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "a@opd.test")
		require.NoError(t, err)
		assert.True(t, ok, "第 %d 次应放行", i+1)
	}
	ok, _ := l.Allow(ctx, "a@opd.test")
	assert.False(t, ok, "超出配额应拒绝")

	ok, _ = l.Allow(ctx, "b@opd.test")
	assert.True(t, ok, "不同 key 独立计数")
}

func TestLocal_Refill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLocal(2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	l.Allow(ctx, "k")
	l.Allow(ctx, "k")
	ok, _ := l.Allow(ctx, "k")
	assert.False(t, ok)

	now = now.Add(31 * time.Second)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok, "半个窗口后应恢复一个配额")
}

type failingWindow struct{ calls int }

func (f *failingWindow) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	f.calls++
	return false, errors.New("redis down")
}

type fixedWindow struct{ allow bool }

func (f fixedWindow) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return f.allow, nil
}

func TestNew_FallsBackOnRedisError(t *testing.T) {
	store := &failingWindow{}
	var reported int
	l := New(store, 1, time.Minute, func(error) { reported++ })

	ok, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = l.Allow(context.Background(), "k")
	assert.False(t, ok, "降级后仍按进程内配额限流")
	assert.Equal(t, 2, store.calls)
	assert.Equal(t, 2, reported)
}

func TestNew_UsesRedisDecision(t *testing.T) {
	l := New(fixedWindow{allow: false}, 10, time.Minute, nil)
	ok, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew_NilStoreIsLocal(t *testing.T) {
	_, ok := New(nil, 1, time.Minute, nil).(*Local)
	assert.True(t, ok)
}
