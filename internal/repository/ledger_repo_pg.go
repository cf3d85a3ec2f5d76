package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paveldemidov/flightbook/internal/domain"
)

// LedgerRepository persists payment verification attempts. Transitions are
// monotone: MarkProcessed and MarkFailed never touch an entry that is already
// PROCESSED, so replayed updates degrade to no-ops.
type LedgerRepository interface {
	Insert(ctx context.Context, attempt *domain.PaymentAttempt) error
	FindByPaymentID(ctx context.Context, paymentID string) (*domain.PaymentAttempt, error)
	MarkProcessed(ctx context.Context, paymentID, bookingRef string, recovered bool) error
	MarkFailed(ctx context.Context, paymentID, reason string) error
	FindOrphans(ctx context.Context, olderThan time.Duration, maxAttempts int) ([]domain.PaymentAttempt, error)
	Stats(ctx context.Context) (*domain.LedgerStats, error)
}

const attemptColumns = `payment_id, order_id, signature, user_id, flight_id, flight_number, from_city, to_city, departure_time, arrival_time, airline, price_cents, non_stop, passengers, status, booking_ref, attempts, error_message, created_at, processed_at, failed_at, recovered_from_failure`

type PGLedgerRepository struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) LedgerRepository {
	return &PGLedgerRepository{db: db}
}

func (r *PGLedgerRepository) Insert(ctx context.Context, a *domain.PaymentAttempt) error {
	_, err := r.db.Exec(ctx, `INSERT INTO payment_attempts (payment_id, order_id, signature, user_id, flight_id, flight_number, from_city, to_city, departure_time, arrival_time, airline, price_cents, non_stop, passengers, status, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1)`,
		a.PaymentID, a.OrderID, a.Signature, a.UserID, a.FlightID,
		a.Snapshot.FlightNumber, a.Snapshot.From, a.Snapshot.To, a.Snapshot.DepartureTime, a.Snapshot.ArrivalTime,
		a.Snapshot.Airline, a.Snapshot.PriceCents, a.Snapshot.NonStop, a.Passengers, domain.PaymentAttemptPending)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *PGLedgerRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.PaymentAttempt, error) {
	a, err := scanAttempt(r.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM payment_attempts WHERE payment_id=$1`, paymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *PGLedgerRepository) MarkProcessed(ctx context.Context, paymentID, bookingRef string, recovered bool) error {
	_, err := r.db.Exec(ctx, `UPDATE payment_attempts
		SET status=$2, booking_ref=$3, processed_at=now(), recovered_from_failure=$4
		WHERE payment_id=$1 AND status <> $2`,
		paymentID, domain.PaymentAttemptProcessed, bookingRef, recovered)
	return err
}

func (r *PGLedgerRepository) MarkFailed(ctx context.Context, paymentID, reason string) error {
	_, err := r.db.Exec(ctx, `UPDATE payment_attempts
		SET status=$2, error_message=$3, failed_at=now(), attempts=attempts+1
		WHERE payment_id=$1 AND status <> $4`,
		paymentID, domain.PaymentAttemptFailed, reason, domain.PaymentAttemptProcessed)
	return err
}

func (r *PGLedgerRepository) FindOrphans(ctx context.Context, olderThan time.Duration, maxAttempts int) ([]domain.PaymentAttempt, error) {
	rows, err := r.db.Query(ctx, `SELECT `+attemptColumns+` FROM payment_attempts
		WHERE status=$1 AND created_at < $2 AND attempts < $3
		ORDER BY created_at`,
		domain.PaymentAttemptPending, time.Now().Add(-olderThan), maxAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []domain.PaymentAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

func (r *PGLedgerRepository) Stats(ctx context.Context) (*domain.LedgerStats, error) {
	var s domain.LedgerStats
	err := r.db.QueryRow(ctx, `SELECT
		count(*),
		count(*) FILTER (WHERE status='PROCESSED'),
		count(*) FILTER (WHERE status='PENDING'),
		count(*) FILTER (WHERE status='FAILED'),
		count(*) FILTER (WHERE status='PROCESSED' AND recovered_from_failure),
		COALESCE(avg(EXTRACT(EPOCH FROM (processed_at - created_at)) * 1000) FILTER (WHERE status='PROCESSED'), 0)
		FROM payment_attempts`).
		Scan(&s.Total, &s.Processed, &s.Pending, &s.Failed, &s.Recovered, &s.AvgProcessingMillis)
	if err != nil {
		return nil, err
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Processed) / float64(s.Total) * 100
	}
	return &s, nil
}

func scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	var (
		a          domain.PaymentAttempt
		bookingRef *string
		errMsg     *string
	)
	err := row.Scan(&a.PaymentID, &a.OrderID, &a.Signature, &a.UserID, &a.FlightID,
		&a.Snapshot.FlightNumber, &a.Snapshot.From, &a.Snapshot.To, &a.Snapshot.DepartureTime, &a.Snapshot.ArrivalTime,
		&a.Snapshot.Airline, &a.Snapshot.PriceCents, &a.Snapshot.NonStop, &a.Passengers, &a.Status, &bookingRef, &a.Attempts, &errMsg,
		&a.CreatedAt, &a.ProcessedAt, &a.FailedAt, &a.RecoveredFromFailure)
	if err != nil {
		return nil, err
	}
	if bookingRef != nil {
		a.BookingRef = *bookingRef
	}
	if errMsg != nil {
		a.ErrorMessage = *errMsg
	}
	return &a, nil
}

var _ LedgerRepository = (*PGLedgerRepository)(nil)
