package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/paveldemidov/flightbook/internal/bookingref"
	"github.com/paveldemidov/flightbook/internal/domain"
	"github.com/paveldemidov/flightbook/internal/kafka"
	"github.com/paveldemidov/flightbook/internal/repository"
	"go.uber.org/zap"
)

// RecoverOrphans sweeps attempts stuck PENDING past the threshold. For each
// candidate it first checks whether the booking actually exists — a crash
// between commit and the ledger update is the common case — and only then
// synthesizes the booking from the stored snapshot. One bad candidate never
// stops the sweep.
func (s *Service) RecoverOrphans(ctx context.Context) (int, error) {
	candidates, err := s.ledger.FindOrphans(ctx, s.orphanThreshold, s.maxAttempts)
	if err != nil {
		return 0, err
	}
	if len(candidates) > 0 {
		s.log.Info("found orphaned payments to recover", zap.Int("count", len(candidates)))
	}

	recovered := 0
	for i := range candidates {
		attempt := candidates[i]
		if err := s.recoverOne(ctx, &attempt); err != nil {
			s.log.Error("failed to recover orphaned payment",
				zap.String("payment_id", attempt.PaymentID),
				zap.Error(err),
			)
			s.attempts.MarkFailed(ctx, attempt.PaymentID, err.Error())
			continue
		}
		recovered++
	}
	return recovered, nil
}

func (s *Service) recoverOne(ctx context.Context, attempt *domain.PaymentAttempt) error {
	// Reconciliation may have committed and crashed before the ledger update;
	// then the only repair needed is the PROCESSED mark.
	existing, err := s.bookings.FindByPaymentID(ctx, attempt.UserID, attempt.PaymentID)
	if err == nil {
		s.attempts.MarkProcessed(ctx, attempt.PaymentID, existing.BookingRef, false)
		s.log.Info("repaired orphaned payment ledger entry",
			zap.String("payment_id", attempt.PaymentID),
			zap.String("booking_ref", existing.BookingRef),
		)
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	booking := &domain.Booking{
		BookingRef:    bookingref.Generate(),
		UserID:        attempt.UserID,
		FlightID:      attempt.FlightID,
		FlightNumber:  attempt.Snapshot.FlightNumber,
		From:          attempt.Snapshot.From,
		To:            attempt.Snapshot.To,
		DepartureTime: attempt.Snapshot.DepartureTime,
		ArrivalTime:   attempt.Snapshot.ArrivalTime,
		Airline:       attempt.Snapshot.Airline,
		PriceCents:    attempt.Snapshot.PriceCents,
		NonStop:       attempt.Snapshot.NonStop,
		Passengers:    attempt.Passengers,
		OrderID:       attempt.OrderID,
		PaymentID:     attempt.PaymentID,
		Signature:     attempt.Signature,
		Status:        domain.BookingStatusConfirmed,
		Recovered:     true,
		BookedAt:      attempt.CreatedAt,
	}

	err = s.txm.WithinTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.flights.ReserveSeats(ctx, tx, attempt.FlightID, attempt.Passengers); err != nil {
			return err
		}
		return s.bookings.Insert(ctx, tx, booking)
	})
	if err != nil {
		return err
	}

	s.attempts.MarkProcessed(ctx, attempt.PaymentID, booking.BookingRef, true)
	s.publishEvent(ctx, kafka.PaymentEvent{
		Type:       kafka.EventBookingRecovered,
		PaymentID:  attempt.PaymentID,
		OrderID:    attempt.OrderID,
		BookingRef: booking.BookingRef,
		UserID:     attempt.UserID,
		FlightID:   attempt.FlightID,
		Passengers: attempt.Passengers,
		Recovered:  true,
	})
	s.invalidateFlights(ctx)

	s.log.Info("recovered orphaned payment",
		zap.String("payment_id", attempt.PaymentID),
		zap.String("booking_ref", booking.BookingRef),
	)
	return nil
}
