package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	CheckoutTopic   = "checkout-outbox"
	CheckoutGroupID = "cart-service-consumer"
)

type CartClearer interface {
	ClearCart(ctx context.Context, owner domain.Owner) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CheckoutConsumer empties the buyer's cart once a checkout completes.
type CheckoutConsumer struct {
	reader  messageReader
	carts   CartClearer
	log     *slog.Logger
	retries int
	backoff time.Duration
}

func NewCheckoutConsumer(brokers []string, topic string, carts CartClearer, log *slog.Logger) *CheckoutConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  CheckoutGroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newCheckoutConsumer(reader, carts, log)
}

func newCheckoutConsumer(reader messageReader, carts CartClearer, log *slog.Logger) *CheckoutConsumer {
	return &CheckoutConsumer{
		reader:  reader,
		carts:   carts,
		log:     log,
		retries: 3,
		backoff: 500 * time.Millisecond,
	}
}

func (c *CheckoutConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consume(ctx)
	}
}

func (c *CheckoutConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing checkout reader", "error", err)
	}
}

func (c *CheckoutConsumer) consume(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Error("error reading checkout message", "error", err)
			sleep(ctx, c.backoff)
		}
		return
	}

	c.handleWithRetry(ctx, m)

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.log.Error("error committing checkout message", "offset", m.Offset, "error", err)
	}
}

func (c *CheckoutConsumer) handleWithRetry(ctx context.Context, m kafka.Message) {
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, m)
		if err == nil {
			return
		}
		if attempt >= c.retries || ctx.Err() != nil {
			c.log.Error("giving up on checkout message", "offset", m.Offset, "attempts", attempt, "error", err)
			return
		}
		sleep(ctx, c.backoff*time.Duration(attempt))
	}
}

// handle returns an error only for failures worth retrying.
func (c *CheckoutConsumer) handle(ctx context.Context, m kafka.Message) error {
	ctx = extractTrace(ctx, &m)

	var payload domain.CheckoutCompleted
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		c.log.WarnContext(ctx, "skipping malformed checkout message", "offset", m.Offset, "error", err)
		return nil
	}
	if payload.UserID == "" {
		c.log.WarnContext(ctx, "skipping checkout message without user_id", "offset", m.Offset, "checkout_id", payload.CheckoutID)
		return nil
	}

	if err := c.carts.ClearCart(ctx, domain.UserOwner(payload.UserID)); err != nil {
		return err
	}
	c.log.InfoContext(ctx, "cleared cart after checkout", "checkout_id", payload.CheckoutID, "user_id", payload.UserID)
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
