// Package events announces completed coupon redemptions to downstream
// consumers (order history, analytics).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const TypeCouponRedeemed = "coupon.redeemed"

type CouponRedeemed struct {
	Type           string          `json:"type"`
	CouponCode     string          `json:"coupon_code"`
	UserID         string          `json:"user_id"`
	OrderID        string          `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	CurrentUsage   int             `json:"current_usage"`
	UsedAt         time.Time       `json:"used_at"`
}

type Publisher interface {
	PublishRedeemed(ctx context.Context, ev CouponRedeemed) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// PublishRedeemed keys messages by order id so every event for one order
// lands on the same partition.
func (p *KafkaPublisher) PublishRedeemed(ctx context.Context, ev CouponRedeemed) error {
	ev.Type = TypeCouponRedeemed
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal redemption event")
	}

	msg := kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(TypeCouponRedeemed)},
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{headers: &msg.Headers})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "write redemption event")
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher stands in for Kafka when no brokers are configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) PublishRedeemed(_ context.Context, ev CouponRedeemed) error {
	p.log.Info(TypeCouponRedeemed,
		zap.String("coupon_code", ev.CouponCode),
		zap.String("user_id", ev.UserID),
		zap.String("order_id", ev.OrderID),
		zap.String("discount_amount", ev.DiscountAmount.StringFixed(2)),
		zap.Int("current_usage", ev.CurrentUsage),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
