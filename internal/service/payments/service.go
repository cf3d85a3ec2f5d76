package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/paveldemidov/flightbook/internal/bookingref"
	"github.com/paveldemidov/flightbook/internal/domain"
	"github.com/paveldemidov/flightbook/internal/gateway/razorpay"
	"github.com/paveldemidov/flightbook/internal/kafka"
	"github.com/paveldemidov/flightbook/internal/repository"
	"go.uber.org/zap"
)

const orderCurrency = "INR"

// PaymentUseCase is the surface the HTTP layer consumes.
type PaymentUseCase interface {
	KeyID() string
	CreateOrder(ctx context.Context, amountMinor int64) (*razorpay.Order, error)
	VerifyPayment(ctx context.Context, in VerifyPaymentInput) (*Result, error)
	PaymentStatus(ctx context.Context, paymentID string) (string, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error)
	LedgerStats(ctx context.Context) (*domain.LedgerStats, error)
	RecoverOrphans(ctx context.Context) (int, error)
}

// Gateway is the slice of the payment provider the reconciliation flow needs.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	KeyID() string
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Cache interface {
	InvalidateFlights(ctx context.Context) error
}

// Secrets holds the two independent HMAC keys: one for client-confirmed
// payment signatures, one for webhook bodies.
type Secrets struct {
	KeySecret     string
	WebhookSecret string
}

// Service drives payment reconciliation: it turns a verified gateway payment
// into exactly one seat decrement and one booking record, with the attempt
// ledger observing every step.
type Service struct {
	users    repository.UserRepository
	flights  repository.FlightRepository
	bookings repository.BookingRepository
	ledger   repository.LedgerRepository
	txm      repository.TxManager
	gateway  Gateway
	producer Producer
	cache    Cache
	attempts *attemptLog
	log      *zap.Logger

	secrets            Secrets
	eventsTopic        string
	notificationsTopic string

	orphanThreshold time.Duration
	maxAttempts     int
}

type ServiceOption func(*Service)

func WithCache(cache Cache) ServiceOption {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithNotificationsTopic(topic string) ServiceOption {
	return func(s *Service) {
		s.notificationsTopic = topic
	}
}

// WithRecoveryPolicy overrides how old a PENDING attempt must be before the
// sweep picks it up and the retry cap past which it needs manual attention.
func WithRecoveryPolicy(orphanThreshold time.Duration, maxAttempts int) ServiceOption {
	return func(s *Service) {
		s.orphanThreshold = orphanThreshold
		s.maxAttempts = maxAttempts
	}
}

func NewService(
	users repository.UserRepository,
	flights repository.FlightRepository,
	bookings repository.BookingRepository,
	ledger repository.LedgerRepository,
	txm repository.TxManager,
	gateway Gateway,
	producer Producer,
	eventsTopic string,
	secrets Secrets,
	log *zap.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		users:           users,
		flights:         flights,
		bookings:        bookings,
		ledger:          ledger,
		txm:             txm,
		gateway:         gateway,
		producer:        producer,
		eventsTopic:     eventsTopic,
		secrets:         secrets,
		attempts:        &attemptLog{repo: ledger, log: log},
		log:             log,
		orphanThreshold: 5 * time.Minute,
		maxAttempts:     3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) KeyID() string {
	return s.gateway.KeyID()
}

// CreateOrder registers a gateway order for the given amount in minor units.
func (s *Service) CreateOrder(ctx context.Context, amountMinor int64) (*razorpay.Order, error) {
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	receipt := "receipt_" + uuid.NewString()
	return s.gateway.CreateOrder(ctx, amountMinor, orderCurrency, receipt)
}

// PaymentStatus reads the gateway-side status of a payment.
func (s *Service) PaymentStatus(ctx context.Context, paymentID string) (string, error) {
	payment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	return payment.Status, nil
}

func (s *Service) LedgerStats(ctx context.Context) (*domain.LedgerStats, error) {
	return s.ledger.Stats(ctx)
}

type VerifyPaymentInput struct {
	OrderID    string `json:"razorpay_order_id"`
	PaymentID  string `json:"razorpay_payment_id"`
	Signature  string `json:"razorpay_signature"`
	UserID     int64  `json:"user_id"`
	FlightID   int64  `json:"flight_id"`
	Passengers int    `json:"passengers"`
}

// Result reports a completed reconciliation. Idempotent distinguishes a
// replay that found the booking already confirmed from a fresh confirmation;
// SeatsRemaining is only meaningful for fresh confirmations.
type Result struct {
	BookingRef     string
	PaymentID      string
	SeatsRemaining int
	Idempotent     bool
}

// VerifyPayment is the synchronous entry point: the client posts the order
// id, payment id and signature it received from the gateway checkout.
func (s *Service) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (*Result, error) {
	// Authenticity comes first: nothing may be mutated on a forged request.
	if !razorpay.VerifyPaymentSignature(in.OrderID, in.PaymentID, in.Signature, s.secrets.KeySecret) {
		s.attempts.MarkFailed(ctx, in.PaymentID, "invalid signature")
		return nil, ErrSignatureInvalid
	}

	return s.reconcile(ctx, reconcileRequest{
		orderID:       in.OrderID,
		paymentID:     in.PaymentID,
		signature:     in.Signature,
		userID:        in.UserID,
		flightID:      in.FlightID,
		passengers:    in.Passengers,
		recordAttempt: true,
	})
}

type reconcileRequest struct {
	orderID       string
	paymentID     string
	signature     string
	userID        int64
	flightID      int64
	passengers    int
	recordAttempt bool
}

// reconcile is the shared state machine behind the synchronous verification
// call and the asynchronous webhook. The idempotency check precedes the seat
// reservation so a replayed request can never decrement seats twice, and the
// reservation and booking write share one transaction so neither can be
// observed without the other.
func (s *Service) reconcile(ctx context.Context, req reconcileRequest) (*Result, error) {
	user, err := s.users.FindByID(ctx, req.userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.attempts.MarkFailed(ctx, req.paymentID, "user not found")
			return nil, ErrUserNotFound
		}
		s.attempts.MarkFailed(ctx, req.paymentID, err.Error())
		return nil, fmt.Errorf("load user: %w", err)
	}

	if existing, err := s.bookings.FindByPaymentID(ctx, user.ID, req.paymentID); err == nil {
		s.log.Info("idempotent replay, booking already confirmed",
			zap.String("payment_id", req.paymentID),
			zap.String("booking_ref", existing.BookingRef),
		)
		return &Result{BookingRef: existing.BookingRef, PaymentID: req.paymentID, Idempotent: true}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.attempts.MarkFailed(ctx, req.paymentID, err.Error())
		return nil, fmt.Errorf("idempotency check: %w", err)
	}

	snapshot, err := s.flights.GetByID(ctx, req.flightID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.attempts.MarkFailed(ctx, req.paymentID, "flight not found")
			return nil, ErrFlightNotFound
		}
		s.attempts.MarkFailed(ctx, req.paymentID, err.Error())
		return nil, fmt.Errorf("load flight: %w", err)
	}

	if req.recordAttempt {
		s.attempts.Record(ctx, &domain.PaymentAttempt{
			PaymentID:  req.paymentID,
			OrderID:    req.orderID,
			Signature:  req.signature,
			UserID:     user.ID,
			FlightID:   snapshot.ID,
			Snapshot:   snapshot.Snapshot(),
			Passengers: req.passengers,
		})
	}

	var (
		flight  *domain.Flight
		booking *domain.Booking
	)
	txErr := s.txm.WithinTx(ctx, func(tx pgx.Tx) error {
		f, err := s.flights.ReserveSeats(ctx, tx, req.flightID, req.passengers)
		if err != nil {
			return err
		}
		flight = f

		booking = &domain.Booking{
			BookingRef:    bookingref.Generate(),
			UserID:        user.ID,
			FlightID:      f.ID,
			FlightNumber:  f.FlightNumber,
			From:          f.From,
			To:            f.To,
			DepartureTime: f.DepartureTime,
			ArrivalTime:   f.ArrivalTime,
			Airline:       f.Airline,
			PriceCents:    f.PriceCents,
			NonStop:       f.NonStop,
			Passengers:    req.passengers,
			OrderID:       req.orderID,
			PaymentID:     req.paymentID,
			Signature:     req.signature,
			Status:        domain.BookingStatusConfirmed,
			BookedAt:      time.Now(),
		}
		return s.bookings.Insert(ctx, tx, booking)
	})
	if txErr != nil {
		return nil, s.failReconcile(ctx, req, txErr)
	}

	s.attempts.MarkProcessed(ctx, req.paymentID, booking.BookingRef, false)
	s.publishEvent(ctx, kafka.PaymentEvent{
		Type:       kafka.EventPaymentProcessed,
		PaymentID:  req.paymentID,
		OrderID:    req.orderID,
		BookingRef: booking.BookingRef,
		UserID:     user.ID,
		FlightID:   flight.ID,
		Passengers: req.passengers,
	})
	s.invalidateFlights(ctx)

	s.log.Info("payment reconciled",
		zap.String("payment_id", req.paymentID),
		zap.String("booking_ref", booking.BookingRef),
		zap.Int("seats_remaining", flight.SeatsAvailable),
	)
	return &Result{
		BookingRef:     booking.BookingRef,
		PaymentID:      req.paymentID,
		SeatsRemaining: flight.SeatsAvailable,
	}, nil
}

// failReconcile maps an aborted transaction to the caller-facing error and
// records the failure on the ledger.
func (s *Service) failReconcile(ctx context.Context, req reconcileRequest, txErr error) error {
	if errors.Is(txErr, repository.ErrSeatsUnavailable) {
		flight, err := s.flights.GetByID(ctx, req.flightID)
		if errors.Is(err, repository.ErrNotFound) {
			s.attempts.MarkFailed(ctx, req.paymentID, "flight not found")
			return ErrFlightNotFound
		}
		if err != nil {
			s.attempts.MarkFailed(ctx, req.paymentID, err.Error())
			return fmt.Errorf("load flight: %w", err)
		}

		seatsErr := &SeatsUnavailableError{Remaining: flight.SeatsAvailable}
		s.attempts.MarkFailed(ctx, req.paymentID, seatsErr.Error())
		s.publishFailure(ctx, req, seatsErr.Error())
		return seatsErr
	}

	s.attempts.MarkFailed(ctx, req.paymentID, txErr.Error())
	s.publishFailure(ctx, req, txErr.Error())
	return fmt.Errorf("reconcile payment: %w", txErr)
}

func (s *Service) publishFailure(ctx context.Context, req reconcileRequest, reason string) {
	s.publishEvent(ctx, kafka.PaymentEvent{
		Type:       kafka.EventPaymentFailed,
		PaymentID:  req.paymentID,
		OrderID:    req.orderID,
		UserID:     req.userID,
		FlightID:   req.flightID,
		Passengers: req.passengers,
		Reason:     reason,
	})
}

func (s *Service) publishEvent(ctx context.Context, event kafka.PaymentEvent) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := s.producer.Publish(ctx, s.eventsTopic, event.PaymentID, event); err != nil {
		s.log.Warn("failed to publish payment event",
			zap.String("type", event.Type),
			zap.String("payment_id", event.PaymentID),
			zap.Error(err),
		)
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, event.PaymentID, event); err != nil {
			s.log.Warn("failed to publish notification event",
				zap.String("payment_id", event.PaymentID),
				zap.Error(err),
			)
		}
	}
}

var _ PaymentUseCase = (*Service)(nil)

func (s *Service) invalidateFlights(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.log.Warn("failed to invalidate flight cache", zap.Error(err))
	}
}
