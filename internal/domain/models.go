package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a ledger entry or template.
type TransactionType string

const (
	TypeInflow   TransactionType = "inflow"
	TypeOutflow  TransactionType = "outflow"
	TypeTransfer TransactionType = "transfer"
)

// Status is the settlement state of a transaction.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPaid        Status = "paid"
	StatusReceived    Status = "received"
	StatusCanceled    Status = "canceled"
	StatusTransferred Status = "transferred"
	StatusLate        Status = "late"
)

// Frequency is the repetition unit of a recurring template.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringTemplate describes a transaction that repeats on a schedule.
// LastGeneratedDate is the generator's watermark and never moves backwards.
type RecurringTemplate struct {
	ID                uuid.UUID       `json:"id"`
	CompanyID         uuid.UUID       `json:"company_id"`
	ChartAccountID    *uuid.UUID      `json:"chart_account_id,omitempty"`
	BankAccountID     *uuid.UUID      `json:"bank_account_id,omitempty"`
	ContactID         *uuid.UUID      `json:"contact_id,omitempty"`
	TransactionType   TransactionType `json:"transaction_type"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	Frequency         Frequency       `json:"frequency"`
	Interval          int             `json:"interval"`
	StartDate         civil.Date      `json:"start_date"`
	EndDate           *civil.Date     `json:"end_date,omitempty"`
	LastGeneratedDate *civil.Date     `json:"last_generated_date,omitempty"`
	PaymentMethod     *string         `json:"payment_method,omitempty"`
}

// IsActive reports whether the template is eligible for a batch run on today.
func (t RecurringTemplate) IsActive(today civil.Date) bool {
	if t.StartDate.After(today) {
		return false
	}
	return t.EndDate == nil || t.EndDate.After(today)
}

// GeneratedStatus is the status given to occurrences materialized from the template.
func (t RecurringTemplate) GeneratedStatus() Status {
	if t.TransactionType == TypeTransfer {
		return StatusPaid
	}
	return StatusPending
}

// Transaction is a single ledger entry, either manual, generated from a
// template, or one leg of a transfer.
type Transaction struct {
	ID                     uuid.UUID       `json:"id"`
	CompanyID              uuid.UUID       `json:"company_id"`
	ChartAccountID         *uuid.UUID      `json:"chart_account_id,omitempty"`
	BankAccountID          *uuid.UUID      `json:"bank_account_id,omitempty"`
	DestinationAccountID   *uuid.UUID      `json:"destination_account_id,omitempty"`
	ContactID              *uuid.UUID      `json:"contact_id,omitempty"`
	RecurringTransactionID *uuid.UUID      `json:"recurring_transaction_id,omitempty"`
	TransactionType        TransactionType `json:"transaction_type"`
	Description            string          `json:"description"`
	Amount                 decimal.Decimal `json:"amount"`
	DueDate                civil.Date      `json:"due_date"`
	Status                 Status          `json:"status"`
	PaymentMethod          *string         `json:"payment_method,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}

// OccurrenceKey is the natural deduplication key of a generated occurrence.
type OccurrenceKey struct {
	CompanyID   uuid.UUID
	Description string
	Amount      decimal.Decimal
	DueDate     civil.Date
}

// Key returns the deduplication key of the transaction.
func (t Transaction) Key() OccurrenceKey {
	return OccurrenceKey{
		CompanyID:   t.CompanyID,
		Description: t.Description,
		Amount:      t.Amount,
		DueDate:     t.DueDate,
	}
}

// BankAccount holds a company's balance at one bank.
type BankAccount struct {
	ID             uuid.UUID       `json:"id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	BankName       string          `json:"bank_name"`
	AccountName    string          `json:"account_name,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TransferRequest moves Amount from SourceAccountID to DestinationAccountID.
// An empty IdempotencyKey disables replay protection.
type TransferRequest struct {
	SourceAccountID      uuid.UUID
	DestinationAccountID uuid.UUID
	Amount               decimal.Decimal
	Description          string
	CompanyID            uuid.UUID
	IdempotencyKey       string
}

// TransferResult is the outcome of a completed transfer.
type TransferResult struct {
	Outflow            Transaction     `json:"outflow"`
	Inflow             Transaction     `json:"inflow"`
	SourceBalance      decimal.Decimal `json:"source_balance"`
	DestinationBalance decimal.Decimal `json:"destination_balance"`
}

// IdempotencyRecord stores the result of a keyed transfer for replays.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	Result      TransferResult
	CreatedAt   time.Time
}
