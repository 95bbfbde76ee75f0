package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/punchamoorthee/bizfin/internal/domain"
	"github.com/shopspring/decimal"
)

func TestMemoryStore_UpdateLastGeneratedNeverMovesBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	later := civil.Date{Year: 2024, Month: time.June, Day: 1}
	tmpl := &domain.RecurringTemplate{StartDate: civil.Date{Year: 2024, Month: time.January, Day: 1}, LastGeneratedDate: &later}
	if err := s.CreateTemplate(ctx, tmpl); err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}

	if err := s.UpdateLastGenerated(ctx, tmpl.ID, civil.Date{Year: 2024, Month: time.April, Day: 15}); err != nil {
		t.Fatalf("UpdateLastGenerated failed: %v", err)
	}

	got, err := s.GetTemplate(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if *got.LastGeneratedDate != later {
		t.Fatalf("expected watermark to stay at %s, got %s", later, got.LastGeneratedDate)
	}
}

func TestMemoryStore_UnknownTemplate(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetTemplate(context.Background(), uuid.New()); !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestMemoryStore_GeneratedOccurrencesAreUnique(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	templateID := uuid.New()
	company := uuid.New()

	newTxn := func(amount string) *domain.Transaction {
		return &domain.Transaction{
			CompanyID:              company,
			RecurringTransactionID: &templateID,
			Description:            "rent",
			Amount:                 decimal.RequireFromString(amount),
			DueDate:                civil.Date{Year: 2024, Month: time.February, Day: 1},
		}
	}

	if err := s.InsertTransaction(ctx, newTxn("100")); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	// 100.00 and 100 are the same amount.
	err := s.InsertTransaction(ctx, newTxn("100.00"))
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	var storeErr *Error
	if !errors.As(err, &storeErr) || storeErr.Table != "transactions" {
		t.Fatalf("expected store error on transactions, got %v", err)
	}

	manual := newTxn("100")
	manual.RecurringTransactionID = nil
	if err := s.InsertTransaction(ctx, manual); err != nil {
		t.Fatalf("manual insert with the same key should be allowed: %v", err)
	}
	if n := len(s.Transactions()); n != 2 {
		t.Fatalf("expected 2 transactions, got %d", n)
	}
}

func TestMemoryStore_RunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	acc := &domain.BankAccount{CompanyID: uuid.New(), CurrentBalance: decimal.NewFromInt(500)}
	if err := s.CreateAccount(ctx, acc); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		if _, err := tx.AdjustBalance(ctx, acc.ID, decimal.NewFromInt(-100)); err != nil {
			return err
		}
		if _, err := tx.ReserveIdempotencyKey(ctx, "k1", "h1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := s.GetAccount(ctx, acc.ID)
	if !got.CurrentBalance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected balance 500 after rollback, got %s", got.CurrentBalance)
	}

	err = s.RunInTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		rec, err := tx.ReserveIdempotencyKey(ctx, "k1", "h1")
		if err != nil {
			return err
		}
		if rec != nil {
			t.Fatal("expected rolled back key reservation to be gone")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}
}

func TestMemoryStore_LockAccountsMissing(t *testing.T) {
	s := NewMemoryStore()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx LedgerTx) error {
		_, err := tx.LockAccounts(ctx, uuid.New())
		return err
	})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestWrapMapsPostgresCodes(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{code: "23505", want: domain.ErrDuplicate},
		{code: "40001", want: domain.ErrConflict},
		{code: "40P01", want: domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := wrap("insert", "transactions", &pgconn.PgError{Code: tt.code})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if wrap("insert", "transactions", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	cause := errors.New("connection reset")
	if err := wrap("select", "bank_accounts", cause); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
