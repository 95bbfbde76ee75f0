package main

import (
	"context"
	"flag"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/punchamoorthee/bizfin/internal/config"
	"github.com/punchamoorthee/bizfin/internal/domain"
	"github.com/punchamoorthee/bizfin/internal/logger"
	"github.com/punchamoorthee/bizfin/internal/store"
	"github.com/shopspring/decimal"
)

const (
	TotalAccounts  = 1000
	InitialBalance = "10000.00"
)

type demoTemplate struct {
	txnType   domain.TransactionType
	desc      string
	amount    string
	frequency domain.Frequency
	interval  int
}

var demoTemplates = []demoTemplate{
	{domain.TypeOutflow, "Office rent", "2500.00", domain.FrequencyMonthly, 1},
	{domain.TypeOutflow, "Payroll", "18000.00", domain.FrequencyMonthly, 1},
	{domain.TypeOutflow, "Cloud hosting", "420.50", domain.FrequencyMonthly, 1},
	{domain.TypeInflow, "Retainer: Acme Corp", "6000.00", domain.FrequencyMonthly, 1},
	{domain.TypeOutflow, "Cleaning service", "150.00", domain.FrequencyWeekly, 2},
	{domain.TypeOutflow, "Estimated taxes", "3200.00", domain.FrequencyQuarterly, 1},
	{domain.TypeOutflow, "Domain renewal", "35.00", domain.FrequencyYearly, 1},
	{domain.TypeTransfer, "Savings sweep", "1000.00", domain.FrequencyMonthly, 1},
}

func main() {
	companyFlag := flag.String("company", "", "Company id to seed (random when empty)")
	accounts := flag.Int("accounts", TotalAccounts, "Number of bank accounts to create")
	migrate := flag.Bool("migrate", true, "Apply the schema before seeding")
	flag.Parse()

	bootLog := logger.NewWithWriter(os.Stderr)
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Fatal().Err(err).Msg("failed to read .env file")
	}
	cfg, err := config.LoadLocal()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	loc, _ := cfg.Location()
	if *accounts < 1 {
		log.Fatal().Int("accounts", *accounts).Msg("at least one account is required")
	}

	company := uuid.New()
	if *companyFlag != "" {
		if company, err = uuid.Parse(*companyFlag); err != nil {
			log.Fatal().Err(err).Msg("invalid company id")
		}
	}

	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()

	log.Info().Str("company_id", company.String()).Msg("seeding database")

	// 1. Schema
	if *migrate {
		if err := store.NewPostgresStore(pool).Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
	}

	// 2. Check existing
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM bank_accounts WHERE company_id = $1", company).Scan(&count); err != nil {
		log.Fatal().Err(err).Msg("unable to count bank accounts")
	}
	if count >= *accounts {
		log.Info().Int("accounts", count).Msg("company already seeded, skipping")
		return
	}

	// 3. Bulk insert accounts using CopyFrom
	now := time.Now()
	balance := numeric(decimal.RequireFromString(InitialBalance))
	accountIDs := make([]uuid.UUID, *accounts)
	rows := make([][]interface{}, 0, *accounts)
	for i := range accountIDs {
		accountIDs[i] = uuid.New()
		rows = append(rows, []interface{}{accountIDs[i], company, "Demo Bank", "Operating", balance, now, now})
	}

	copyCount, err := pool.CopyFrom(ctx,
		pgx.Identifier{"bank_accounts"},
		[]string{"id", "company_id", "bank_name", "account_name", "current_balance", "created_at", "updated_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("bulk insert of bank accounts failed")
	}
	log.Info().Int64("accounts", copyCount).Msg("seeded bank accounts")

	// 4. Recurring templates starting at the beginning of the business year
	rows = templateRows(company, accountIDs, civil.Date{Year: now.In(loc).Year(), Month: time.January, Day: 1})

	copyCount, err = pool.CopyFrom(ctx,
		pgx.Identifier{"recurring_transactions"},
		[]string{"id", "company_id", "bank_account_id", "transaction_type", "description", "amount", "frequency", "interval", "start_date"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("bulk insert of recurring templates failed")
	}
	log.Info().Int64("templates", copyCount).Msg("seeded recurring templates")
}

// templateRows builds one recurring_transactions row per demo template, spread
// over the seeded accounts.
func templateRows(company uuid.UUID, accountIDs []uuid.UUID, start civil.Date) [][]interface{} {
	rows := make([][]interface{}, 0, len(demoTemplates))
	for i, tmpl := range demoTemplates {
		rows = append(rows, []interface{}{
			uuid.New(), company, accountIDs[i%len(accountIDs)], string(tmpl.txnType), tmpl.desc,
			numeric(decimal.RequireFromString(tmpl.amount)), string(tmpl.frequency), tmpl.interval,
			start.In(time.UTC),
		})
	}
	return rows
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
