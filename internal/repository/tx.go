package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("not found")

// TxManager scopes a storage transaction around fn: commit when fn returns
// nil, rollback on error or panic. Repositories that take a pgx.Tx argument
// participate in the same atomic unit.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// txBeginner is the slice of *pgxpool.Pool the manager needs.
type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type PGTxManager struct {
	db txBeginner
}

func NewTxManager(db *pgxpool.Pool) TxManager {
	return &PGTxManager{db: db}
}

func (m *PGTxManager) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var _ TxManager = (*PGTxManager)(nil)
