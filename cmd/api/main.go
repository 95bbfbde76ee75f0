package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/bizfin/internal/api"
	"github.com/punchamoorthee/bizfin/internal/config"
	"github.com/punchamoorthee/bizfin/internal/lock"
	"github.com/punchamoorthee/bizfin/internal/logger"
	"github.com/punchamoorthee/bizfin/internal/recurring"
	"github.com/punchamoorthee/bizfin/internal/scheduler"
	"github.com/punchamoorthee/bizfin/internal/service"
	"github.com/punchamoorthee/bizfin/internal/store"
	"github.com/rs/zerolog"
)

// recordStore is everything the server needs from a backing store.
type recordStore interface {
	recurring.TemplateStore
	recurring.TransactionStore
	service.Ledger
	api.AccountReader
}

func main() {
	bootLog := logger.NewWithWriter(os.Stderr)
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Fatal().Err(err).Msg("failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	loc, _ := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var records recordStore
	if cfg.InMemory() {
		log.Warn().Msg("running with the in-memory store; data is lost on restart")
		records = store.NewMemoryStore()
	} else {
		pool, err := store.Connect(ctx, cfg.DBSource)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to connect to database")
		}
		pg := store.NewPostgresStore(pool)
		defer pg.Close()
		log.Info().Msg("database connection established")
		records = pg
	}

	// Initialize Layers
	generator := recurring.NewGenerator(records, records, log, recurring.WithLocation(loc))
	transfers := service.NewTransferService(records, log, loc)
	handler := api.NewHandler(generator, transfers, records, log)

	if cfg.SchedulerEnabled {
		locker, closeLocker := newLocker(ctx, cfg, log)
		defer closeLocker()

		job := scheduler.NewRecurringJob(generator, locker, cfg.RunLockKey, cfg.RunLockTTL, log)
		sched := scheduler.New(job, cfg.RecurringSchedule, loc, log)
		if err := sched.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start scheduler")
		}
		defer func() {
			<-sched.Stop().Done()
			log.Info().Msg("scheduler stopped")
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("timezone", loc.String()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newLocker shares the run lock through Redis when configured so that only one
// replica runs a scheduled batch.
func newLocker(ctx context.Context, cfg *config.Config, log zerolog.Logger) (lock.Locker, func()) {
	if cfg.RedisURL == "" {
		return lock.NewLocalLocker(), func() {}
	}
	client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to redis")
	}
	log.Info().Msg("redis run lock enabled")
	return lock.NewRedisLocker(client), func() { client.Close() }
}
