package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// PaymentEvent is published on every reconciliation outcome and consumed by
// the notifications worker.
type PaymentEvent struct {
	Type       string    `json:"type"`
	PaymentID  string    `json:"payment_id"`
	OrderID    string    `json:"order_id"`
	BookingRef string    `json:"booking_ref,omitempty"`
	UserID     int64     `json:"user_id"`
	FlightID   int64     `json:"flight_id"`
	Passengers int       `json:"passengers"`
	Recovered  bool      `json:"recovered,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventPaymentProcessed = "payment_processed"
	EventPaymentFailed    = "payment_failed"
	EventBookingRecovered = "booking_recovered"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
