package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paveldemidov/flightbook/internal/domain"
)

// ErrSeatsUnavailable means the conditional decrement matched no row: the
// flight is missing or has fewer seats than requested. Callers that need to
// tell the two apart re-read the flight.
var ErrSeatsUnavailable = errors.New("seats unavailable")

type FlightSearch struct {
	From          string
	To            string
	DepartureDate time.Time
	ReturnDate    time.Time
	RoundTrip     bool
}

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Search(ctx context.Context, criteria FlightSearch) ([]domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	// ReserveSeats checks seats_available >= count and decrements it in a
	// single conditional UPDATE, returning the post-decrement flight. When tx
	// is non-nil the update joins that transaction.
	ReserveSeats(ctx context.Context, tx pgx.Tx, flightID int64, count int) (*domain.Flight, error)
}

const flightColumns = `id, flight_number, from_city, to_city, departure_time, arrival_time, estimated_flight_time, airline, price_cents, non_stop, seats_available, created_at, updated_at`

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	err := row.Scan(&f.ID, &f.FlightNumber, &f.From, &f.To, &f.DepartureTime, &f.ArrivalTime, &f.EstimatedFlightTime, &f.Airline, &f.PriceCents, &f.NonStop, &f.SeatsAvailable, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectFlights(rows)
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

func (r *PGFlightRepository) Search(ctx context.Context, c FlightSearch) ([]domain.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights
		WHERE from_city ILIKE $1 AND to_city ILIKE $2
		AND departure_time >= $3 AND departure_time < $4`
	dayStart := c.DepartureDate.Truncate(24 * time.Hour)
	args := []interface{}{"%" + c.From + "%", "%" + c.To + "%", dayStart, dayStart.Add(24 * time.Hour)}

	if c.RoundTrip {
		returnStart := c.ReturnDate.Truncate(24 * time.Hour)
		query += ` AND arrival_time >= $5 AND arrival_time < $6`
		args = append(args, returnStart, returnStart.Add(24*time.Hour))
	}
	query += ` ORDER BY departure_time`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectFlights(rows)
}

func (r *PGFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	return r.db.QueryRow(ctx, `INSERT INTO flights (flight_number, from_city, to_city, departure_time, arrival_time, estimated_flight_time, airline, price_cents, non_stop, seats_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		flight.FlightNumber, flight.From, flight.To, flight.DepartureTime, flight.ArrivalTime, flight.EstimatedFlightTime, flight.Airline, flight.PriceCents, flight.NonStop, flight.SeatsAvailable).
		Scan(&flight.ID, &flight.CreatedAt, &flight.UpdatedAt)
}

func (r *PGFlightRepository) ReserveSeats(ctx context.Context, tx pgx.Tx, flightID int64, count int) (*domain.Flight, error) {
	query := `UPDATE flights SET seats_available = seats_available - $2, updated_at = now()
		WHERE id=$1 AND seats_available >= $2
		RETURNING ` + flightColumns

	var row pgx.Row
	if tx != nil {
		row = tx.QueryRow(ctx, query, flightID, count)
	} else {
		row = r.db.QueryRow(ctx, query, flightID, count)
	}

	f, err := scanFlight(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSeatsUnavailable
	}
	return f, err
}

func collectFlights(rows pgx.Rows) ([]domain.Flight, error) {
	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

var _ FlightRepository = (*PGFlightRepository)(nil)
