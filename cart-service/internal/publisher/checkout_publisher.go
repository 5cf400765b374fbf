package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/legacyxi/shopcart/cart-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

const DefaultCheckoutTopic = "cart-checkout"

// MessageWriter is the part of kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CheckoutPublisher hands checkout payloads to order placement.
type CheckoutPublisher struct {
	writer  MessageWriter
	timeout time.Duration
}

func NewCheckoutPublisher(topic string, brokers ...string) *CheckoutPublisher {
	if topic == "" {
		topic = DefaultCheckoutTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewCheckoutPublisherWithWriter(w)
}

func NewCheckoutPublisherWithWriter(w MessageWriter) *CheckoutPublisher {
	return &CheckoutPublisher{writer: w, timeout: 5 * time.Second}
}

// PublishCheckout writes the payload keyed by session so one shopper's
// checkouts stay ordered.
func (p *CheckoutPublisher) PublishCheckout(ctx context.Context, payload *domain.CheckoutPayload) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal checkout payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(payload.SessionID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "checkout_id", Value: []byte(payload.CheckoutID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish checkout %s: %w", payload.CheckoutID, err)
	}
	return nil
}

func (p *CheckoutPublisher) Close() error {
	return p.writer.Close()
}
