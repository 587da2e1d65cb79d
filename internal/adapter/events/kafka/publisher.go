// Package kafka publishes committed-transaction events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"banking-services/config"
	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"
	"banking-services/pkg/requestctx"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	defaultTopic = "transactions.committed"
	eventType    = "transaction.committed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements ports.EventPublisher on a kafka.Writer.
// Messages are keyed by account ID so one account's events stay ordered.
type Publisher struct {
	writer     messageWriter
	topic      string
	propagator propagation.TextMapPropagator
	log        zerolog.Logger
}

// NewPublisher creates a Publisher writing to cfg.Topic on cfg.Brokers.
func NewPublisher(cfg config.KafkaConfig, log zerolog.Logger) *Publisher {
	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newPublisher(w, topic, log)
}

func newPublisher(w messageWriter, topic string, log zerolog.Logger) *Publisher {
	return &Publisher{
		writer:     w,
		topic:      topic,
		propagator: otel.GetTextMapPropagator(),
		log:        log.With().Str("component", "kafka_publisher").Str("topic", topic).Logger(),
	}
}

// PublishTransactionCommitted writes one event. Delivery is at-least-once.
func (p *Publisher) PublishTransactionCommitted(ctx context.Context, event domain.TransactionCommittedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AccountID.String()),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(event.EventID.String())},
		},
	}
	if id := requestctx.RequestIDFromContext(ctx); id != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: requestctx.HeaderRequestID, Value: []byte(id)})
	}
	carrier := headerCarrier{headers: &msg.Headers}
	p.propagator.Inject(ctx, carrier)

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	p.log.Debug().
		Str("event_id", event.EventID.String()).
		Str("transaction_id", event.TransactionID.String()).
		Msg("transaction event published")
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// headerCarrier adapts kafka headers to propagation.TextMapCarrier.
type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

var _ ports.EventPublisher = (*Publisher)(nil)
