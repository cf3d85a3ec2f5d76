package payments

import (
	"errors"
	"fmt"
)

var (
	// ErrSignatureInvalid is returned before any state is touched; the caller
	// must re-initiate payment, the attempt is never retried automatically.
	ErrSignatureInvalid = errors.New("payment signature verification failed")
	ErrUserNotFound     = errors.New("user not found")
	ErrFlightNotFound   = errors.New("flight not found")
	ErrAttemptNotFound  = errors.New("payment attempt not found")
	ErrInvalidAmount    = errors.New("amount must be a positive number")
)

// SeatsUnavailableError reports how many seats actually remained when the
// conditional decrement lost the race.
type SeatsUnavailableError struct {
	Remaining int
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("only %d seat(s) available, another user just booked this flight", e.Remaining)
}
