package email

import (
	"context"
	"fmt"

	"github.com/paveldemidov/flightbook/internal/bookingref"
	"github.com/paveldemidov/flightbook/internal/kafka"
)

type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

// Send renders a notification for a payment event. Delivery is a stub that
// prints; the worker owns the consume loop.
func (s *Sender) Send(ctx context.Context, event kafka.PaymentEvent) error {
	switch event.Type {
	case kafka.EventPaymentProcessed, kafka.EventBookingRecovered:
		fmt.Printf("notify user %d: booking %s confirmed for flight %d\n", event.UserID, bookingref.Format(event.BookingRef), event.FlightID)
	case kafka.EventPaymentFailed:
		fmt.Printf("notify user %d: payment %s failed: %s\n", event.UserID, event.PaymentID, event.Reason)
	}
	return nil
}
