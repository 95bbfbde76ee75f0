package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/punchamoorthee/bizfin/internal/domain"
	"github.com/punchamoorthee/bizfin/internal/metrics"
	"github.com/punchamoorthee/bizfin/internal/store"
	"github.com/rs/zerolog"
)

// Ledger runs fn as a single all-or-nothing unit.
type Ledger interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.LedgerTx) error) error
}

type TransferService struct {
	ledger Ledger
	logger zerolog.Logger
	now    func() time.Time
	loc    *time.Location
}

func NewTransferService(ledger Ledger, logger zerolog.Logger, loc *time.Location) *TransferService {
	if loc == nil {
		loc = time.UTC
	}
	return &TransferService{
		ledger: ledger,
		logger: logger.With().Str("component", "transfer_service").Logger(),
		now:    time.Now,
		loc:    loc,
	}
}

func validate(req domain.TransferRequest) error {
	if req.SourceAccountID == req.DestinationAccountID {
		return domain.ErrSameAccount
	}
	if !req.Amount.IsPositive() {
		return domain.ErrNonPositiveAmount
	}
	if req.CompanyID == uuid.Nil {
		return domain.ErrMissingCompany
	}
	return nil
}

// requestHash fingerprints the payload bound to an idempotency key.
func requestHash(req domain.TransferRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s",
		req.SourceAccountID, req.DestinationAccountID, req.Amount.String(), req.CompanyID, req.Description)
	return hex.EncodeToString(h.Sum(nil))
}

// Transfer moves req.Amount between two accounts of the same company and
// records the paired outflow/inflow legs. Balances and legs are written in one
// unit: either everything is applied or nothing is. replayed is true when an
// earlier request with the same idempotency key already completed.
func (s *TransferService) Transfer(ctx context.Context, req domain.TransferRequest) (result *domain.TransferResult, replayed bool, err error) {
	log := s.logger.With().
		Str("source_account_id", req.SourceAccountID.String()).
		Str("destination_account_id", req.DestinationAccountID.String()).
		Str("company_id", req.CompanyID.String()).
		Str("amount", req.Amount.String()).
		Logger()

	defer func() {
		metrics.TransfersTotal.WithLabelValues(outcome(err, replayed)).Inc()
	}()

	if err := validate(req); err != nil {
		log.Warn().Err(err).Msg("transfer rejected")
		return nil, false, err
	}

	hash := requestHash(req)
	var out domain.TransferResult

	err = s.ledger.RunInTx(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		// 1. Idempotency Check
		if req.IdempotencyKey != "" {
			rec, err := tx.ReserveIdempotencyKey(ctx, req.IdempotencyKey, hash)
			if err != nil {
				return err
			}
			if rec != nil {
				if rec.RequestHash != hash {
					return domain.ErrIdempotencyMismatch
				}
				out = rec.Result
				replayed = true
				return nil
			}
		}

		// 2. Lock both accounts
		accounts, err := tx.LockAccounts(ctx, req.SourceAccountID, req.DestinationAccountID)
		if err != nil {
			return err
		}
		src, dst := accounts[req.SourceAccountID], accounts[req.DestinationAccountID]
		if src.CompanyID != req.CompanyID {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, src.ID)
		}
		if dst.CompanyID != req.CompanyID {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, dst.ID)
		}

		// 3. Business Logic Check
		if src.CurrentBalance.LessThan(req.Amount) {
			return domain.ErrInsufficientFunds
		}

		// 4. Update Balances
		srcBalance, err := tx.AdjustBalance(ctx, src.ID, req.Amount.Neg())
		if err != nil {
			return fmt.Errorf("debit source: %w", err)
		}
		dstBalance, err := tx.AdjustBalance(ctx, dst.ID, req.Amount)
		if err != nil {
			return fmt.Errorf("credit destination: %w", err)
		}

		// 5. Record both legs
		outflow, inflow := s.legs(req)
		if err := tx.InsertTransaction(ctx, &outflow); err != nil {
			return fmt.Errorf("record outflow leg: %w", err)
		}
		if err := tx.InsertTransaction(ctx, &inflow); err != nil {
			return fmt.Errorf("record inflow leg: %w", err)
		}

		out = domain.TransferResult{
			Outflow:            outflow,
			Inflow:             inflow,
			SourceBalance:      srcBalance,
			DestinationBalance: dstBalance,
		}

		// 6. Finalize Idempotency
		if req.IdempotencyKey != "" {
			if err := tx.CompleteIdempotencyKey(ctx, req.IdempotencyKey, out); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrAccountNotFound),
			errors.Is(err, domain.ErrIdempotencyMismatch), errors.Is(err, domain.ErrConflict):
			log.Warn().Err(err).Msg("transfer rejected")
		default:
			log.Error().Err(err).Msg("transfer failed")
		}
		return nil, false, err
	}

	if replayed {
		log.Info().Str("idempotency_key", req.IdempotencyKey).Msg("transfer replayed")
	} else {
		log.Info().
			Str("outflow_id", out.Outflow.ID.String()).
			Str("inflow_id", out.Inflow.ID.String()).
			Msg("transfer completed")
	}
	return &out, replayed, nil
}

// legs builds the outflow and inflow entries; each references the other
// account as its destination and both share one timestamp.
func (s *TransferService) legs(req domain.TransferRequest) (outflow, inflow domain.Transaction) {
	now := s.now()
	today := civil.DateOf(now.In(s.loc))
	src, dst := req.SourceAccountID, req.DestinationAccountID

	outflow = domain.Transaction{
		ID:                   uuid.New(),
		CompanyID:            req.CompanyID,
		BankAccountID:        &src,
		DestinationAccountID: &dst,
		TransactionType:      domain.TypeOutflow,
		Description:          req.Description,
		Amount:               req.Amount,
		DueDate:              today,
		Status:               domain.StatusTransferred,
		CreatedAt:            now,
	}
	inflow = outflow
	inflow.ID = uuid.New()
	inflow.BankAccountID = &dst
	inflow.DestinationAccountID = &src
	inflow.TransactionType = domain.TypeInflow
	return outflow, inflow
}

func outcome(err error, replayed bool) string {
	switch {
	case err == nil && replayed:
		return "replayed"
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrIdempotencyMismatch):
		return "idempotency_mismatch"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
