package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/bizfin/internal/config"
	"github.com/punchamoorthee/bizfin/internal/logger"
	"github.com/punchamoorthee/bizfin/internal/recurring"
	"github.com/punchamoorthee/bizfin/internal/store"
)

// runner is the generator surface the command drives.
type runner interface {
	RunBatchReport(ctx context.Context) (recurring.Report, error)
	RunOneReport(ctx context.Context, templateID uuid.UUID) (recurring.Report, error)
}

// run expands one template when templateID is set, otherwise every active one.
func run(ctx context.Context, gen runner, templateID string) (recurring.Report, error) {
	if templateID == "" {
		return gen.RunBatchReport(ctx)
	}
	id, err := uuid.Parse(templateID)
	if err != nil {
		return recurring.Report{}, fmt.Errorf("invalid template id %q: %w", templateID, err)
	}
	return gen.RunOneReport(ctx, id)
}

func main() {
	templateFlag := flag.String("template", "", "Expand a single recurring template by id")
	timeout := flag.Duration("timeout", 5*time.Minute, "Abort the run after this long")
	flag.Parse()

	bootLog := logger.NewWithWriter(os.Stderr)
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Fatal().Err(err).Msg("failed to read .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	if cfg.InMemory() {
		log.Fatal().Msg("generate needs DB_SOURCE; the in-memory store has no templates")
	}
	loc, _ := cfg.Location()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	pg := store.NewPostgresStore(pool)
	defer pg.Close()

	gen := recurring.NewGenerator(pg, pg, log, recurring.WithLocation(loc))

	rep, err := run(ctx, gen, *templateFlag)
	if err != nil {
		log.Error().Err(err).Msg("recurring generation failed")
		pg.Close()
		os.Exit(1)
	}

	fmt.Printf("generated %d transactions (%d templates, %d duplicates, %d failed)\n",
		rep.Generated, rep.Templates, rep.Duplicates, rep.Failed)
}
