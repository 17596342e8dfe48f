package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/sony/gobreaker/v2"
)

type lookup struct {
	contents *domain.CartContents
	version  int64
}

// BreakerCache stops calling a failing cache for a while so that requests
// fall through to the store without waiting on Redis timeouts.
type BreakerCache struct {
	next CartCache
	cb   *gobreaker.CircuitBreaker[lookup]
}

type BreakerSettings struct {
	Name             string
	ConsecutiveFails uint32
	OpenTimeout      time.Duration
}

func NewBreakerCache(next CartCache, s BreakerSettings, log *slog.Logger) *BreakerCache {
	if s.ConsecutiveFails == 0 {
		s.ConsecutiveFails = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[lookup](gobreaker.Settings{
		Name:    s.Name,
		Timeout: s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFails
		},
		// misses and lost races are healthy answers
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrStale)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("cache circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerCache{next: next, cb: cb}
}

func (b *BreakerCache) Get(ctx context.Context, owner domain.Owner) (*domain.CartContents, int64, error) {
	res, err := b.cb.Execute(func() (lookup, error) {
		contents, version, err := b.next.Get(ctx, owner)
		return lookup{contents: contents, version: version}, err
	})
	return res.contents, res.version, err
}

func (b *BreakerCache) Set(ctx context.Context, owner domain.Owner, version int64, contents *domain.CartContents) error {
	_, err := b.cb.Execute(func() (lookup, error) {
		return lookup{}, b.next.Set(ctx, owner, version, contents)
	})
	return err
}

// Delete bypasses the breaker: invalidation is always attempted.
func (b *BreakerCache) Delete(ctx context.Context, owners ...domain.Owner) error {
	return b.next.Delete(ctx, owners...)
}

func (b *BreakerCache) State() gobreaker.State {
	return b.cb.State()
}
