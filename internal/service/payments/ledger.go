package payments

import (
	"context"

	"github.com/paveldemidov/flightbook/internal/domain"
	"github.com/paveldemidov/flightbook/internal/repository"
	"go.uber.org/zap"
)

// attemptLog wraps the ledger repository with best-effort semantics: the
// ledger observes the payment flow, it never gates it. Every write failure is
// logged and swallowed so a broken ledger cannot abort a live reconciliation.
type attemptLog struct {
	repo repository.LedgerRepository
	log  *zap.Logger
}

func (l *attemptLog) Record(ctx context.Context, attempt *domain.PaymentAttempt) {
	if err := l.repo.Insert(ctx, attempt); err != nil {
		l.log.Warn("failed to record payment attempt",
			zap.String("payment_id", attempt.PaymentID),
			zap.Error(err),
		)
	}
}

func (l *attemptLog) MarkProcessed(ctx context.Context, paymentID, bookingRef string, recovered bool) {
	if err := l.repo.MarkProcessed(ctx, paymentID, bookingRef, recovered); err != nil {
		l.log.Warn("failed to mark payment processed",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	}
}

func (l *attemptLog) MarkFailed(ctx context.Context, paymentID, reason string) {
	if err := l.repo.MarkFailed(ctx, paymentID, reason); err != nil {
		l.log.Warn("failed to mark payment failed",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	}
}
