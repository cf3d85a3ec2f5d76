package domain

import "time"

type Flight struct {
	ID                  int64     `json:"id"`
	FlightNumber        string    `json:"flight_number"`
	From                string    `json:"from"`
	To                  string    `json:"to"`
	DepartureTime       time.Time `json:"departure_time"`
	ArrivalTime         time.Time `json:"arrival_time"`
	EstimatedFlightTime string    `json:"estimated_flight_time"`
	Airline             string    `json:"airline"`
	PriceCents          int64     `json:"price_cents"`
	NonStop             bool      `json:"non_stop"`
	SeatsAvailable      int       `json:"seats_available"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Snapshot captures the flight fields that are denormalized into bookings and
// payment attempts. The flight may be edited between the attempt and the final
// commit, so reconciliation always works from the snapshot, never a re-read.
func (f *Flight) Snapshot() FlightSnapshot {
	return FlightSnapshot{
		FlightNumber:  f.FlightNumber,
		From:          f.From,
		To:            f.To,
		DepartureTime: f.DepartureTime,
		ArrivalTime:   f.ArrivalTime,
		Airline:       f.Airline,
		PriceCents:    f.PriceCents,
		NonStop:       f.NonStop,
	}
}

type FlightSnapshot struct {
	FlightNumber  string    `json:"flight_number"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	Airline       string    `json:"airline"`
	PriceCents    int64     `json:"price_cents"`
	NonStop       bool      `json:"non_stop"`
}
