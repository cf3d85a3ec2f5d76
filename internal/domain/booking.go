package domain

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

type Booking struct {
	ID            int64         `json:"id"`
	BookingRef    string        `json:"booking_ref"`
	UserID        int64         `json:"user_id"`
	FlightID      int64         `json:"flight_id"`
	FlightNumber  string        `json:"flight_number"`
	From          string        `json:"from"`
	To            string        `json:"to"`
	DepartureTime time.Time     `json:"departure_time"`
	ArrivalTime   time.Time     `json:"arrival_time"`
	Airline       string        `json:"airline"`
	PriceCents    int64         `json:"price_cents"`
	NonStop       bool          `json:"non_stop"`
	Passengers    int           `json:"passengers"`
	OrderID       string        `json:"order_id"`
	PaymentID     string        `json:"payment_id"`
	Signature     string        `json:"signature"`
	Status        BookingStatus `json:"status"`
	Recovered     bool          `json:"recovered"`
	BookedAt      time.Time     `json:"booked_at"`
}
