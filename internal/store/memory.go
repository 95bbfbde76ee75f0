package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/punchamoorthee/bizfin/internal/domain"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory record store, safe for concurrent use.
// Data is lost on restart; it backs tests and ENVIRONMENT=memory runs.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState

	// InsertHook, when set, is consulted before every transaction insert and
	// a non-nil result rejects the write.
	InsertHook func(txn domain.Transaction) error
	// WatermarkHook, when set, is consulted before every watermark update.
	WatermarkHook func(id uuid.UUID, date civil.Date) error
}

type memoryState struct {
	templates    map[uuid.UUID]domain.RecurringTemplate
	accounts     map[uuid.UUID]domain.BankAccount
	transactions []domain.Transaction
	idempotency  map[string]domain.IdempotencyRecord
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		templates:    make(map[uuid.UUID]domain.RecurringTemplate, len(s.templates)),
		accounts:     make(map[uuid.UUID]domain.BankAccount, len(s.accounts)),
		transactions: append([]domain.Transaction(nil), s.transactions...),
		idempotency:  make(map[string]domain.IdempotencyRecord, len(s.idempotency)),
	}
	for k, v := range s.templates {
		c.templates[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	return c
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memoryState{}.clone()}
}

// CreateTemplate stores a template, assigning an id when it has none.
func (s *MemoryStore) CreateTemplate(ctx context.Context, tmpl *domain.RecurringTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tmpl.ID == uuid.Nil {
		tmpl.ID = uuid.New()
	}
	s.state.templates[tmpl.ID] = *tmpl
	return nil
}

// CreateAccount stores a bank account, assigning an id when it has none.
func (s *MemoryStore) CreateAccount(ctx context.Context, acc *domain.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	if acc.UpdatedAt.IsZero() {
		acc.UpdatedAt = time.Now()
	}
	s.state.accounts[acc.ID] = *acc
	return nil
}

func (s *MemoryStore) ListActiveTemplates(ctx context.Context, today civil.Date) ([]domain.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.RecurringTemplate
	for _, tmpl := range s.state.templates {
		if tmpl.IsActive(today) {
			result = append(result, tmpl)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartDate != result[j].StartDate {
			return result[i].StartDate.Before(result[j].StartDate)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (s *MemoryStore) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpl, ok := s.state.templates[id]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	return &tmpl, nil
}

// UpdateLastGenerated moves the watermark forward; an older date is ignored.
func (s *MemoryStore) UpdateLastGenerated(ctx context.Context, id uuid.UUID, date civil.Date) error {
	if s.WatermarkHook != nil {
		if err := s.WatermarkHook(id, date); err != nil {
			return &Error{Op: "update", Table: "recurring_transactions", Err: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmpl, ok := s.state.templates[id]
	if !ok {
		return domain.ErrTemplateNotFound
	}
	if tmpl.LastGeneratedDate == nil || tmpl.LastGeneratedDate.Before(date) {
		d := date
		tmpl.LastGeneratedDate = &d
	}
	s.state.templates[id] = tmpl
	return nil
}

func (s *MemoryStore) OccurrenceExists(ctx context.Context, key domain.OccurrenceKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.findOccurrence(key, false), nil
}

func (s *MemoryStore) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertTransaction(&s.state, txn)
}

func (s *MemoryStore) insertTransaction(st *memoryState, txn *domain.Transaction) error {
	if s.InsertHook != nil {
		if err := s.InsertHook(*txn); err != nil {
			return &Error{Op: "insert", Table: "transactions", Err: err}
		}
	}
	// Mirrors the partial unique index over generated occurrences.
	if txn.RecurringTransactionID != nil && st.findOccurrence(txn.Key(), true) {
		return &Error{Op: "insert", Table: "transactions", Err: domain.ErrDuplicate}
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	st.transactions = append(st.transactions, *txn)
	return nil
}

func (st memoryState) findOccurrence(key domain.OccurrenceKey, generatedOnly bool) bool {
	for _, t := range st.transactions {
		if generatedOnly && t.RecurringTransactionID == nil {
			continue
		}
		if t.CompanyID == key.CompanyID &&
			t.Description == key.Description &&
			t.Amount.Equal(key.Amount) &&
			t.DueDate == key.DueDate {
			return true
		}
	}
	return false
}

func (s *MemoryStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.state.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

// Transactions returns a copy of every stored transaction in insertion order.
func (s *MemoryStore) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.Transaction(nil), s.state.transactions...)
}

// RunInTx applies fn as one unit: the store stays locked for its duration and
// nothing fn wrote survives an error.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &memoryTx{store: s, state: &work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

type memoryTx struct {
	store *MemoryStore
	state *memoryState
}

func (tx *memoryTx) LockAccounts(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]domain.BankAccount, error) {
	result := make(map[uuid.UUID]domain.BankAccount, len(ids))
	for _, id := range ids {
		acc, ok := tx.state.accounts[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		result[id] = acc
	}
	return result, nil
}

func (tx *memoryTx) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	acc, ok := tx.state.accounts[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	acc.CurrentBalance = acc.CurrentBalance.Add(delta)
	acc.UpdatedAt = time.Now()
	tx.state.accounts[id] = acc
	return acc.CurrentBalance, nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	return tx.store.insertTransaction(tx.state, txn)
}

func (tx *memoryTx) ReserveIdempotencyKey(ctx context.Context, key, requestHash string) (*domain.IdempotencyRecord, error) {
	if rec, ok := tx.state.idempotency[key]; ok {
		return &rec, nil
	}
	tx.state.idempotency[key] = domain.IdempotencyRecord{Key: key, RequestHash: requestHash, CreatedAt: time.Now()}
	return nil, nil
}

func (tx *memoryTx) CompleteIdempotencyKey(ctx context.Context, key string, result domain.TransferResult) error {
	rec, ok := tx.state.idempotency[key]
	if !ok {
		return &Error{Op: "update", Table: "idempotency_keys", Err: fmt.Errorf("key %q not reserved", key)}
	}
	rec.Result = result
	tx.state.idempotency[key] = rec
	return nil
}
