package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultOrderTopic = "order-placed"
	consumerGroup     = "cart-service-consumer"

	// DefaultRetryDelay is the pause after a failed read before trying again.
	DefaultRetryDelay = time.Second
)

// MessageReader is the part of kafka.Reader the poller needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CartClearer empties a session cart once its order has been placed.
type CartClearer interface {
	ClearCart(ctx context.Context, sessionID string) error
}

type orderPlacedEvent struct {
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id,omitempty"`
}

type Poller struct {
	carts      CartClearer
	reader     MessageReader
	log        *zap.Logger
	retryDelay time.Duration
}

func NewPoller(carts CartClearer, log *zap.Logger, topic string, brokers ...string) *Poller {
	if topic == "" {
		topic = DefaultOrderTopic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  consumerGroup,
		MaxBytes: 10e6, // 10MB
	})
	return NewPollerWithReader(carts, reader, log)
}

func NewPollerWithReader(carts CartClearer, reader MessageReader, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{carts: carts, reader: reader, log: log, retryDelay: DefaultRetryDelay}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.readAndClear(ctx); err != nil {
			select {
			case <-time.After(p.retryDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing reader", zap.Error(err))
	}
}

// readAndClear handles one message. It returns the read error, if any,
// so Run can back off; per-message failures are only logged.
func (p *Poller) readAndClear(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		p.log.Warn("error reading message", zap.Error(err), zap.Duration("retry_in", p.retryDelay))
		return err
	}

	var event orderPlacedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.Warn("error parsing message", zap.Error(err), zap.Int64("offset", m.Offset))
		return nil
	}
	if event.SessionID == "" {
		p.log.Warn("missing session_id", zap.Int64("offset", m.Offset))
		return nil
	}

	if err := p.carts.ClearCart(ctx, event.SessionID); err != nil {
		p.log.Error("failed to clear cart",
			zap.String("session_id", event.SessionID),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
		return nil
	}
	p.log.Info("cart cleared after order",
		zap.String("session_id", event.SessionID),
		zap.String("order_id", event.OrderID))
	return nil
}
