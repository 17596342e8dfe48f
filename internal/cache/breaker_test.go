package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyCache struct {
	m       sync.Mutex
	err     error
	calls   int
	deletes int
}

func (f *flakyCache) Get(context.Context, domain.Owner) (*domain.CartContents, int64, error) {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	return nil, 7, ErrCacheMiss
}

func (f *flakyCache) Set(context.Context, domain.Owner, int64, *domain.CartContents) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls++
	return f.err
}

func (f *flakyCache) Delete(context.Context, ...domain.Owner) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.deletes++
	return f.err
}

func newTestBreaker(next CartCache) *BreakerCache {
	return NewBreakerCache(next, BreakerSettings{
		Name:             "test-cache",
		ConsecutiveFails: 3,
		OpenTimeout:      time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBreakerCache_MissesDoNotTrip(t *testing.T) {
	inner := &flakyCache{}
	b := newTestBreaker(inner)

	for i := 0; i < 10; i++ {
		_, version, err := b.Get(context.Background(), domain.UserOwner("u"))
		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.Equal(t, int64(7), version, "version survives the breaker on a miss")
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerCache_OpensAfterFailures(t *testing.T) {
	inner := &flakyCache{err: errors.New("connection refused")}
	b := newTestBreaker(inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := b.Get(ctx, domain.UserOwner("u"))
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, _, err := b.Get(ctx, domain.UserOwner("u"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	err = b.Set(ctx, domain.UserOwner("u"), 0, &domain.CartContents{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls, "open breaker short-circuits calls")
}

func TestBreakerCache_DeleteAlwaysReachesCache(t *testing.T) {
	inner := &flakyCache{err: errors.New("connection refused")}
	b := newTestBreaker(inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, _ = b.Get(ctx, domain.UserOwner("u"))
	}
	require.Equal(t, gobreaker.StateOpen, b.State())

	_ = b.Delete(ctx, domain.UserOwner("u"))
	assert.Equal(t, 1, inner.deletes)
}
