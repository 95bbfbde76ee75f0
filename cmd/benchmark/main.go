package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/bizfin/internal/config"
	"github.com/punchamoorthee/bizfin/internal/logger"
	"github.com/punchamoorthee/bizfin/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	companyID   string
	amount      string
)

var (
	company  uuid.UUID
	accounts []uuid.UUID
	log      zerolog.Logger
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Idempotent replays
	success201    uint64 // Created
	fail409       uint64 // Conflicts (Aborts)
	fail422       uint64 // Insufficient funds
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.StringVar(&companyID, "company", "", "Company whose seeded accounts take part")
	flag.StringVar(&amount, "amount", "1.00", "Amount moved by each transfer")
}

func main() {
	flag.Parse()
	bootLog := logger.NewWithWriter(os.Stderr)
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Fatal().Err(err).Msg("failed to read .env file")
	}
	cfg, err := config.LoadLocal()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = logger.New(cfg.Env, cfg.LogLevel)

	if company, err = uuid.Parse(companyID); err != nil {
		log.Fatal().Err(err).Msg("-company must be the seeded company id")
	}
	if _, err := decimal.NewFromString(amount); err != nil {
		log.Fatal().Err(err).Msg("invalid -amount")
	}
	if accounts, err = loadAccounts(context.Background(), cfg.DBSource); err != nil {
		log.Fatal().Err(err).Msg("unable to load accounts")
	}
	if len(accounts) < 2 {
		log.Fatal().Int("accounts", len(accounts)).Msg("at least two seeded accounts are required")
	}

	log.Info().
		Str("workload", workload).
		Int("workers", concurrency).
		Dur("duration", duration).
		Int("accounts", len(accounts)).
		Msg("starting benchmark")

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		from, to := generateAccounts()

		// Unique keys: every request is a fresh transfer.
		key := fmt.Sprintf("bench-%s-%s-%d", from, to, time.Now().UnixNano())

		payload := map[string]interface{}{
			"source_account_id":      from,
			"destination_account_id": to,
			"amount":                 amount,
			"description":            "benchmark transfer",
			"company_id":             company,
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/transfers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", key)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 201:
			atomic.AddUint64(&success201, 1)
		case 200:
			atomic.AddUint64(&success200, 1)
		case 409:
			atomic.AddUint64(&fail409, 1)
		case 422:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

// loadAccounts reads the seeded account ids of the benchmark company.
func loadAccounts(ctx context.Context, dbURL string) ([]uuid.UUID, error) {
	pool, err := store.Connect(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, "SELECT id FROM bank_accounts WHERE company_id = $1 ORDER BY id", company)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func generateAccounts() (uuid.UUID, uuid.UUID) {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic goes to the first two accounts
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return accounts[0], accounts[1]
			}
			return accounts[1], accounts[0]
		}
	}

	// Uniform Random
	a := rand.Intn(len(accounts))
	b := rand.Intn(len(accounts))
	for a == b {
		b = rand.Intn(len(accounts))
	}
	return accounts[a], accounts[b]
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var abortRate float64
	if total > 0 {
		abortRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  tps,
		"success_created": s201,
		"success_replay":  s200,
		"aborts_conflict": f409,
		"abort_rate_pct":  abortRate,
		"rejected_funds":  f422,
		"errors":          fErr,
	}

	// Print JSON for the plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("unable to save results")
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
