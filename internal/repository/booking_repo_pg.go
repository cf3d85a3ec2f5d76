package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paveldemidov/flightbook/internal/domain"
)

type BookingRepository interface {
	// Insert appends a confirmed booking. When tx is non-nil the insert joins
	// that transaction, so a failed commit leaves no trace of the booking.
	Insert(ctx context.Context, tx pgx.Tx, booking *domain.Booking) error
	// FindByPaymentID locates the booking created for a gateway payment id,
	// the idempotency anchor for replayed verifications and webhooks.
	FindByPaymentID(ctx context.Context, userID int64, paymentID string) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
}

const bookingColumns = `id, booking_ref, user_id, flight_id, flight_number, from_city, to_city, departure_time, arrival_time, airline, price_cents, non_stop, passengers, order_id, payment_id, signature, status, recovered, booked_at`

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) Insert(ctx context.Context, tx pgx.Tx, booking *domain.Booking) error {
	query := `INSERT INTO bookings (booking_ref, user_id, flight_id, flight_number, from_city, to_city, departure_time, arrival_time, airline, price_cents, non_stop, passengers, order_id, payment_id, signature, status, recovered, booked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id`
	args := []interface{}{
		booking.BookingRef, booking.UserID, booking.FlightID, booking.FlightNumber, booking.From, booking.To,
		booking.DepartureTime, booking.ArrivalTime, booking.Airline, booking.PriceCents, booking.NonStop,
		booking.Passengers, booking.OrderID, booking.PaymentID, booking.Signature, booking.Status,
		booking.Recovered, booking.BookedAt,
	}

	var row pgx.Row
	if tx != nil {
		row = tx.QueryRow(ctx, query, args...)
	} else {
		row = r.db.QueryRow(ctx, query, args...)
	}

	err := row.Scan(&booking.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *PGBookingRepository) FindByPaymentID(ctx context.Context, userID int64, paymentID string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id=$1 AND payment_id=$2`, userID, paymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id=$1 ORDER BY booked_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(&b.ID, &b.BookingRef, &b.UserID, &b.FlightID, &b.FlightNumber, &b.From, &b.To, &b.DepartureTime, &b.ArrivalTime, &b.Airline, &b.PriceCents, &b.NonStop, &b.Passengers, &b.OrderID, &b.PaymentID, &b.Signature, &b.Status, &b.Recovered, &b.BookedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
