package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
)

type CartPurger interface {
	DeleteInactiveSessionCarts(ctx context.Context, before time.Time) ([]domain.Owner, error)
}

// CacheInvalidator drops cached contents of swept owners.
type CacheInvalidator interface {
	Delete(ctx context.Context, owners ...domain.Owner) error
}

// Sweeper periodically deletes guest carts nobody touched for longer than ttl.
type Sweeper struct {
	carts    CartPurger
	cache    CacheInvalidator
	ttl      time.Duration
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func New(carts CartPurger, cache CacheInvalidator, ttl, interval time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{
		carts:    carts,
		cache:    cache,
		ttl:      ttl,
		interval: interval,
		timeout:  time.Minute,
		log:      log,
		now:      time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	if s.ttl <= 0 || s.interval <= 0 {
		s.log.Info("session cart sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cutoff := s.now().Add(-s.ttl)
	swept, err := s.carts.DeleteInactiveSessionCarts(ctx, cutoff)
	if err != nil {
		s.log.Error("failed to sweep session carts", "cutoff", cutoff, "error", err)
		return
	}
	if len(swept) == 0 {
		return
	}
	s.log.Info("swept inactive session carts", "count", len(swept), "cutoff", cutoff)

	if err := s.cache.Delete(ctx, swept...); err != nil {
		s.log.Warn("failed to invalidate swept carts", "count", len(swept), "error", err)
	}
}
