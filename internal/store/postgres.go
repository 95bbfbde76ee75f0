package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/bizfin/internal/domain"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect parses connString, opens a pool and pings it.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

const templateColumns = `id, company_id, chart_account_id, bank_account_id, contact_id, transaction_type,
	description, amount, frequency, "interval", start_date, end_date, last_generated_date, payment_method`

// ListActiveTemplates returns templates that have started and not yet ended on today.
func (s *PostgresStore) ListActiveTemplates(ctx context.Context, today civil.Date) ([]domain.RecurringTemplate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+templateColumns+`
		FROM recurring_transactions
		WHERE start_date <= $1
		  AND (end_date IS NULL OR end_date > $1)
		ORDER BY start_date, id`, dateArg(today))
	if err != nil {
		return nil, wrap("select", "recurring_transactions", err)
	}
	defer rows.Close()

	var templates []domain.RecurringTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, wrap("scan", "recurring_transactions", err)
		}
		templates = append(templates, *tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("select", "recurring_transactions", err)
	}
	return templates, nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.RecurringTemplate, error) {
	row := s.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM recurring_transactions WHERE id = $1`, id)
	tmpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, wrap("select", "recurring_transactions", err)
	}
	return tmpl, nil
}

// UpdateLastGenerated moves the watermark forward; an older date is ignored.
func (s *PostgresStore) UpdateLastGenerated(ctx context.Context, id uuid.UUID, date civil.Date) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE recurring_transactions
		SET last_generated_date = GREATEST(COALESCE(last_generated_date, $2), $2),
		    updated_at = NOW()
		WHERE id = $1`, id, dateArg(date))
	if err != nil {
		return wrap("update", "recurring_transactions", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}

func (s *PostgresStore) OccurrenceExists(ctx context.Context, key domain.OccurrenceKey) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE company_id = $1 AND description = $2 AND amount = $3 AND due_date = $4
		)`, key.CompanyID, key.Description, key.Amount, dateArg(key.DueDate)).Scan(&exists)
	if err != nil {
		return false, wrap("select", "transactions", err)
	}
	return exists, nil
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	return insertTransaction(ctx, s.db, txn)
}

func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, company_id, bank_name, COALESCE(account_name, ''), current_balance, updated_at
		FROM bank_accounts WHERE id = $1`, id)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, wrap("select", "bank_accounts", err)
	}
	return acc, nil
}

// RunInTx runs fn inside one database transaction and commits when fn succeeds.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return wrap("begin", "", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgLedgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return wrap("commit", "", err)
	}
	return nil
}

type pgLedgerTx struct {
	tx pgx.Tx
}

// LockAccounts acquires row locks in id order so that concurrent transfers
// between the same pair cannot deadlock.
func (t *pgLedgerTx) LockAccounts(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]domain.BankAccount, error) {
	ordered := append([]uuid.UUID(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool { return bytes.Compare(ordered[i][:], ordered[j][:]) < 0 })

	result := make(map[uuid.UUID]domain.BankAccount, len(ordered))
	for _, id := range ordered {
		row := t.tx.QueryRow(ctx, `
			SELECT id, company_id, bank_name, COALESCE(account_name, ''), current_balance, updated_at
			FROM bank_accounts WHERE id = $1 FOR UPDATE`, id)
		acc, err := scanAccount(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
			}
			return nil, wrap("lock", "bank_accounts", err)
		}
		result[id] = *acc
	}
	return result, nil
}

func (t *pgLedgerTx) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		UPDATE bank_accounts
		SET current_balance = current_balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING current_balance`, delta, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		return decimal.Zero, wrap("update", "bank_accounts", err)
	}
	return balance, nil
}

func (t *pgLedgerTx) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	return insertTransaction(ctx, t.tx, txn)
}

func (t *pgLedgerTx) ReserveIdempotencyKey(ctx context.Context, key, requestHash string) (*domain.IdempotencyRecord, error) {
	rec := domain.IdempotencyRecord{Key: key}
	var body []byte
	err := t.tx.QueryRow(ctx,
		"SELECT request_hash, response_body, created_at FROM idempotency_keys WHERE key = $1",
		key,
	).Scan(&rec.RequestHash, &body, &rec.CreatedAt)

	if err == nil {
		if len(body) > 0 {
			if err := json.Unmarshal(body, &rec.Result); err != nil {
				return nil, wrap("decode", "idempotency_keys", err)
			}
		}
		return &rec, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrap("select", "idempotency_keys", err)
	}

	_, err = t.tx.Exec(ctx,
		"INSERT INTO idempotency_keys (key, request_hash) VALUES ($1, $2)",
		key, requestHash,
	)
	if err != nil {
		err = wrap("insert", "idempotency_keys", err)
		if errors.Is(err, domain.ErrDuplicate) {
			// Another request holding the same key committed first.
			return nil, fmt.Errorf("%w: idempotency key %q in use", domain.ErrConflict, key)
		}
		return nil, err
	}
	return nil, nil
}

func (t *pgLedgerTx) CompleteIdempotencyKey(ctx context.Context, key string, result domain.TransferResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return wrap("encode", "idempotency_keys", err)
	}
	_, err = t.tx.Exec(ctx, "UPDATE idempotency_keys SET response_body = $1 WHERE key = $2", body, key)
	return wrap("update", "idempotency_keys", err)
}

func insertTransaction(ctx context.Context, q querier, txn *domain.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO transactions (
			id, company_id, chart_account_id, bank_account_id, destination_account_id, contact_id,
			recurring_transaction_id, transaction_type, description, amount, due_date, status,
			payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		txn.ID, txn.CompanyID, txn.ChartAccountID, txn.BankAccountID, txn.DestinationAccountID, txn.ContactID,
		txn.RecurringTransactionID, string(txn.TransactionType), txn.Description, txn.Amount,
		dateArg(txn.DueDate), string(txn.Status), txn.PaymentMethod, txn.CreatedAt)
	return wrap("insert", "transactions", err)
}

func scanTemplate(row pgx.Row) (*domain.RecurringTemplate, error) {
	var (
		tmpl          domain.RecurringTemplate
		txnType, freq string
		start         time.Time
		end, lastGen  *time.Time
	)
	err := row.Scan(&tmpl.ID, &tmpl.CompanyID, &tmpl.ChartAccountID, &tmpl.BankAccountID, &tmpl.ContactID,
		&txnType, &tmpl.Description, &tmpl.Amount, &freq, &tmpl.Interval,
		&start, &end, &lastGen, &tmpl.PaymentMethod)
	if err != nil {
		return nil, err
	}
	tmpl.TransactionType = domain.TransactionType(txnType)
	tmpl.Frequency = domain.Frequency(freq)
	tmpl.StartDate = civil.DateOf(start)
	tmpl.EndDate = optDate(end)
	tmpl.LastGeneratedDate = optDate(lastGen)
	return &tmpl, nil
}

func scanAccount(row pgx.Row) (*domain.BankAccount, error) {
	var acc domain.BankAccount
	err := row.Scan(&acc.ID, &acc.CompanyID, &acc.BankName, &acc.AccountName, &acc.CurrentBalance, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func dateArg(d civil.Date) time.Time {
	return d.In(time.UTC)
}

func optDate(t *time.Time) *civil.Date {
	if t == nil {
		return nil
	}
	d := civil.DateOf(*t)
	return &d
}
