package domain

import "time"

type PaymentAttemptStatus string

const (
	PaymentAttemptPending   PaymentAttemptStatus = "PENDING"
	PaymentAttemptProcessed PaymentAttemptStatus = "PROCESSED"
	PaymentAttemptFailed    PaymentAttemptStatus = "FAILED"
)

// PaymentAttempt is the durable ledger record of one payment verification
// attempt. Exactly one exists per gateway payment id. Transitions are
// PENDING -> PROCESSED or PENDING -> FAILED; a FAILED entry may later flip to
// PROCESSED when the recovery sweep finds the booking was actually created.
type PaymentAttempt struct {
	PaymentID            string
	OrderID              string
	Signature            string
	UserID               int64
	FlightID             int64
	Snapshot             FlightSnapshot
	Passengers           int
	Status               PaymentAttemptStatus
	BookingRef           string
	Attempts             int
	ErrorMessage         string
	CreatedAt            time.Time
	ProcessedAt          *time.Time
	FailedAt             *time.Time
	RecoveredFromFailure bool
}

// LedgerStats aggregates attempt counts per lifecycle state.
type LedgerStats struct {
	Total               int64   `json:"total"`
	Processed           int64   `json:"processed"`
	Pending             int64   `json:"pending"`
	Failed              int64   `json:"failed"`
	Recovered           int64   `json:"recovered"`
	AvgProcessingMillis float64 `json:"avg_processing_ms"`
	SuccessRate         float64 `json:"success_rate"`
}
