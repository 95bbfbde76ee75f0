package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/punchamoorthee/bizfin/internal/domain"
	"github.com/shopspring/decimal"
)

// Error is a failed read or write against one table.
type Error struct {
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// wrap maps driver errors onto the domain sentinels and tags them with the
// failing operation.
func wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			err = fmt.Errorf("%w: %s", domain.ErrDuplicate, pgErr.ConstraintName)
		case "40001", "40P01":
			err = fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Message)
		}
	}
	return &Error{Op: op, Table: table, Err: err}
}

// LedgerTx is the set of operations available inside one atomic ledger unit.
type LedgerTx interface {
	// LockAccounts reads the accounts and holds them against concurrent
	// writers until the unit ends. Missing ids yield domain.ErrAccountNotFound.
	LockAccounts(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]domain.BankAccount, error)
	// AdjustBalance adds delta to the account balance and returns the new balance.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	InsertTransaction(ctx context.Context, txn *domain.Transaction) error
	// ReserveIdempotencyKey returns the stored record when key was already
	// used, otherwise reserves it and returns nil.
	ReserveIdempotencyKey(ctx context.Context, key, requestHash string) (*domain.IdempotencyRecord, error)
	CompleteIdempotencyKey(ctx context.Context, key string, result domain.TransferResult) error
}
