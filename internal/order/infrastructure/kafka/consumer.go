package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/dmehra2102/Cartified/pkg/inflight"
	"github.com/dmehra2102/Cartified/pkg/outbox"
	"github.com/dmehra2102/Cartified/pkg/tracing"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Message struct {
	Type    string
	Key     string
	Payload []byte
}

type Handler func(ctx context.Context, m Message) error

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads storefront events. Redelivered offsets are skipped through
// the seen guard, which is never released.
type Consumer struct {
	log    *slog.Logger
	reader Reader
	seen   inflight.Guard
	handle Handler
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, seen inflight.Guard, handle Handler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return newConsumer(log, r, seen, handle)
}

func newConsumer(log *slog.Logger, r Reader, seen inflight.Guard, handle Handler) *Consumer {
	if seen == nil {
		seen = inflight.NewMemory()
	}
	return &Consumer{log: log, reader: r, seen: seen, handle: handle, tracer: otel.Tracer("storefront-consumer")}
}

func Key(topic string, partition int, offset int64) string {
	return "seen:" + topic + ":" + strconv.Itoa(partition) + ":" + strconv.FormatInt(offset, 10)
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		key := Key(msg.Topic, msg.Partition, msg.Offset)
		fresh, err := c.seen.Acquire(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if !fresh {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		eventType := headerValue(msg.Headers, outbox.HeaderEventType)
		msgCtx, span := c.tracer.Start(msgCtx, "Consume"+eventType)

		if err := c.handle(msgCtx, Message{Type: eventType, Key: string(msg.Key), Payload: msg.Value}); err != nil {
			c.log.Error("event handler failed", "type", eventType, "key", string(msg.Key), "err", err)
		}
		span.End()
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "key", key, "err", err)
		}
	}
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
