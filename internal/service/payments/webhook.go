package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/paveldemidov/flightbook/internal/gateway/razorpay"
	"github.com/paveldemidov/flightbook/internal/kafka"
	"github.com/paveldemidov/flightbook/internal/repository"
	"go.uber.org/zap"
)

// The webhook payload carries no client signature, but bookings require the
// field. The original system recorded this literal placeholder and consumers
// learned to expect it, so it is kept as-is.
const webhookRecoverySignature = "webhook_recovery"

const (
	WebhookBookingCreated   = "booking_created"
	WebhookAlreadyProcessed = "already_processed"
	WebhookPaymentFailed    = "payment_failed"
	WebhookEventIgnored     = "event_ignored"
)

type WebhookResult struct {
	Status     string
	BookingRef string
}

// HandleWebhook is the asynchronous entry point. The gateway redelivers until
// it sees a 2xx, so every authenticated payload must converge on the same
// reconcile machine as the synchronous call: whichever arrives first wins and
// the other becomes a no-op.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if !razorpay.VerifyWebhookSignature(body, signature, s.secrets.WebhookSecret) {
		return nil, ErrSignatureInvalid
	}

	event, err := razorpay.ParseWebhook(body)
	if err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}

	switch ev := event.(type) {
	case razorpay.PaymentCaptured:
		return s.handleCaptured(ctx, ev)

	case razorpay.PaymentFailed:
		s.attempts.MarkFailed(ctx, ev.PaymentID, ev.Reason)
		s.publishEvent(ctx, kafka.PaymentEvent{
			Type:      kafka.EventPaymentFailed,
			PaymentID: ev.PaymentID,
			Reason:    ev.Reason,
		})
		return &WebhookResult{Status: WebhookPaymentFailed}, nil

	case razorpay.Ignored:
		s.log.Debug("ignoring webhook event", zap.String("event", ev.Event))
		return &WebhookResult{Status: WebhookEventIgnored}, nil

	default:
		return &WebhookResult{Status: WebhookEventIgnored}, nil
	}
}

// handleCaptured replays a captured payment through the reconcile machine
// using the linkage stored on the ledger entry, covering the case where the
// client never posted its verification call.
func (s *Service) handleCaptured(ctx context.Context, ev razorpay.PaymentCaptured) (*WebhookResult, error) {
	attempt, err := s.ledger.FindByPaymentID(ctx, ev.PaymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load payment attempt: %w", err)
	}

	orderID := ev.OrderID
	if orderID == "" {
		orderID = attempt.OrderID
	}
	passengers := attempt.Passengers
	if passengers <= 0 {
		passengers = 1
	}

	res, err := s.reconcile(ctx, reconcileRequest{
		orderID:    orderID,
		paymentID:  ev.PaymentID,
		signature:  webhookRecoverySignature,
		userID:     attempt.UserID,
		flightID:   attempt.FlightID,
		passengers: passengers,
	})
	if err != nil {
		return nil, err
	}

	if res.Idempotent {
		return &WebhookResult{Status: WebhookAlreadyProcessed, BookingRef: res.BookingRef}, nil
	}
	return &WebhookResult{Status: WebhookBookingCreated, BookingRef: res.BookingRef}, nil
}
