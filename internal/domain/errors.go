package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTemplateNotFound    = errors.New("recurring template not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDuplicate           = errors.New("duplicate record")
	ErrConflict            = errors.New("concurrent update conflict")
	ErrIdempotencyMismatch = errors.New("key reuse with mismatched payload")
)

// Validation failures. All of them match ErrValidation with errors.Is.
var (
	ErrSameAccount       = fmt.Errorf("%w: source and destination accounts must differ", ErrValidation)
	ErrNonPositiveAmount = fmt.Errorf("%w: positive amount required", ErrValidation)
	ErrMissingCompany    = fmt.Errorf("%w: company id required", ErrValidation)
)
