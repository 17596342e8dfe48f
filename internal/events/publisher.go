package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

const eventVersion = 1

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends cart events to Kafka from a background goroutine so that
// request handlers never wait on the broker. When the buffer is full the
// event is dropped and logged.
type Publisher struct {
	w        messageWriter
	producer string
	log      *slog.Logger

	mu     sync.RWMutex
	closed bool
	inbox  chan kafka.Message
	done   chan struct{}
}

func NewKafkaPublisher(brokers []string, topic, producer string, buf int, log *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, producer, buf, log)
}

func newPublisher(w messageWriter, producer string, buf int, log *slog.Logger) *Publisher {
	p := &Publisher{
		w:        w,
		producer: producer,
		log:      log,
		inbox:    make(chan kafka.Message, buf),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Publisher) loop() {
	defer close(p.done)
	for m := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.w.WriteMessages(ctx, m); err != nil {
			p.log.Error("failed to publish cart event", "key", string(m.Key), "error", err)
		}
		cancel()
	}
}

func (p *Publisher) Publish(ctx context.Context, ev domain.CartEvent) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to marshal cart event payload", "event_type", ev.Type, "error", err)
		return
	}

	env := domain.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  eventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.producer,
		CorrelationID: ev.Owner.Key(),
		Payload:       payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}

	value, err := json.Marshal(env)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to marshal cart event", "event_type", ev.Type, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(ev.Owner.Key()),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	injectTrace(ctx, &msg)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.WarnContext(ctx, "publisher closed, dropping cart event", "event_type", ev.Type)
		return
	}
	select {
	case p.inbox <- msg:
	default:
		p.log.WarnContext(ctx, "event buffer full, dropping cart event", "event_type", ev.Type)
	}
}

// Close flushes buffered events and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()

	<-p.done
	return p.w.Close()
}
