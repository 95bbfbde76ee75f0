package models

import (
	"github.com/google/uuid"
	"github.com/punchamoorthee/bizfin/internal/domain"
	"github.com/shopspring/decimal"
)

// TransferRequest is the payload from the client.
type TransferRequest struct {
	SourceAccountID      uuid.UUID       `json:"source_account_id"`
	DestinationAccountID uuid.UUID       `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Description          string          `json:"description"`
	CompanyID            uuid.UUID       `json:"company_id"`
}

// Domain converts the payload, binding the optional idempotency key.
func (r TransferRequest) Domain(idempotencyKey string) domain.TransferRequest {
	return domain.TransferRequest{
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		Amount:               r.Amount,
		Description:          r.Description,
		CompanyID:            r.CompanyID,
		IdempotencyKey:       idempotencyKey,
	}
}

// TransferResponse is the canonical response structure.
type TransferResponse struct {
	domain.TransferResult
	Replayed bool `json:"replayed"`
}

// RunResponse reports the outcome of a generation pass.
type RunResponse struct {
	Generated         int `json:"generated"`
	Templates         int `json:"templates"`
	Duplicates        int `json:"duplicates"`
	Failed            int `json:"failed"`
	WatermarkFailures int `json:"watermark_failures"`
}

// Account is the public view of a bank account.
type Account struct {
	ID             uuid.UUID       `json:"id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	BankName       string          `json:"bank_name"`
	AccountName    string          `json:"account_name,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

func AccountFrom(acc *domain.BankAccount) Account {
	return Account{
		ID:             acc.ID,
		CompanyID:      acc.CompanyID,
		BankName:       acc.BankName,
		AccountName:    acc.AccountName,
		CurrentBalance: acc.CurrentBalance,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}
