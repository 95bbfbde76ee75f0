package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/punchamoorthee/bizfin/internal/domain"
	"github.com/punchamoorthee/bizfin/internal/metrics"
	"github.com/rs/zerolog"
)

// TemplateStore is the template side of the record store used by the generator.
type TemplateStore interface {
	ListActiveTemplates(ctx context.Context, today civil.Date) ([]domain.RecurringTemplate, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*domain.RecurringTemplate, error)
	UpdateLastGenerated(ctx context.Context, id uuid.UUID, date civil.Date) error
}

// TransactionStore is the transaction side of the record store used by the generator.
// InsertTransaction returns domain.ErrDuplicate when the occurrence key is already taken.
type TransactionStore interface {
	OccurrenceExists(ctx context.Context, key domain.OccurrenceKey) (bool, error)
	InsertTransaction(ctx context.Context, txn *domain.Transaction) error
}

// Report summarizes one generator run.
type Report struct {
	Templates         int `json:"templates"`
	Generated         int `json:"generated"`
	Duplicates        int `json:"duplicates"`
	Failed            int `json:"failed"`
	WatermarkFailures int `json:"watermark_failures"`
}

func (r *Report) add(o Report) {
	r.Templates += o.Templates
	r.Generated += o.Generated
	r.Duplicates += o.Duplicates
	r.Failed += o.Failed
	r.WatermarkFailures += o.WatermarkFailures
}

// Generator expands recurring templates into transactions up to today.
type Generator struct {
	templates TemplateStore
	txns      TransactionStore
	logger    zerolog.Logger
	now       func() time.Time
	loc       *time.Location
}

type Option func(*Generator)

// WithClock overrides the source of "now".
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLocation sets the time zone that decides which calendar day "now" falls on.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

func NewGenerator(templates TemplateStore, txns TransactionStore, logger zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{
		templates: templates,
		txns:      txns,
		logger:    logger.With().Str("component", "recurring_generator").Logger(),
		now:       time.Now,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Today is the current business date.
func (g *Generator) Today() civil.Date {
	return civil.DateOf(g.now().In(g.loc))
}

// RunBatch processes every active template and returns the number of
// transactions generated.
func (g *Generator) RunBatch(ctx context.Context) (int, error) {
	rep, err := g.RunBatchReport(ctx)
	return rep.Generated, err
}

// RunBatchReport is RunBatch with the full run summary.
func (g *Generator) RunBatchReport(ctx context.Context) (Report, error) {
	today := g.Today()

	templates, err := g.templates.ListActiveTemplates(ctx, today)
	if err != nil {
		metrics.RecurringRuns.WithLabelValues("batch", "error").Inc()
		g.logger.Error().Err(err).Str("today", today.String()).Msg("failed to fetch recurring templates")
		return Report{}, fmt.Errorf("fetch active templates: %w", err)
	}

	var total Report
	for _, tmpl := range templates {
		if !tmpl.IsActive(today) {
			continue
		}
		total.add(g.expand(ctx, tmpl, today))
	}

	metrics.RecurringRuns.WithLabelValues("batch", "ok").Inc()
	g.logger.Info().
		Str("today", today.String()).
		Int("templates", total.Templates).
		Int("generated", total.Generated).
		Int("duplicates", total.Duplicates).
		Int("failed", total.Failed).
		Msg("recurring batch finished")
	return total, nil
}

// RunOne expands a single template on demand and returns the number of
// transactions generated. Templates outside their active window generate
// nothing and keep their watermark.
func (g *Generator) RunOne(ctx context.Context, templateID uuid.UUID) (int, error) {
	rep, err := g.RunOneReport(ctx, templateID)
	return rep.Generated, err
}

// RunOneReport is RunOne with the full run summary.
func (g *Generator) RunOneReport(ctx context.Context, templateID uuid.UUID) (Report, error) {
	today := g.Today()

	tmpl, err := g.templates.GetTemplate(ctx, templateID)
	if err != nil {
		metrics.RecurringRuns.WithLabelValues("single", "error").Inc()
		if !errors.Is(err, domain.ErrTemplateNotFound) {
			g.logger.Error().Err(err).Str("template_id", templateID.String()).Msg("failed to fetch recurring template")
		}
		return Report{}, fmt.Errorf("fetch template %s: %w", templateID, err)
	}

	if !tmpl.IsActive(today) {
		metrics.RecurringRuns.WithLabelValues("single", "inactive").Inc()
		g.logger.Debug().Str("template_id", templateID.String()).Msg("template outside its active window")
		return Report{}, nil
	}

	rep := g.expand(ctx, *tmpl, today)
	metrics.RecurringRuns.WithLabelValues("single", "ok").Inc()
	return rep, nil
}

// expand materializes every due occurrence of tmpl and advances its watermark.
func (g *Generator) expand(ctx context.Context, tmpl domain.RecurringTemplate, today civil.Date) Report {
	log := g.logger.With().
		Str("template_id", tmpl.ID.String()).
		Str("company_id", tmpl.CompanyID.String()).
		Logger()
	rep := Report{Templates: 1}

	ref := tmpl.StartDate
	if tmpl.LastGeneratedDate != nil && !tmpl.LastGeneratedDate.After(today) {
		ref = *tmpl.LastGeneratedDate
	}

	for occ := Next(ref, tmpl.Frequency, tmpl.Interval); !occ.After(today); occ = Next(occ, tmpl.Frequency, tmpl.Interval) {
		if tmpl.EndDate != nil && occ.After(*tmpl.EndDate) {
			break
		}
		g.materialize(ctx, log, tmpl, occ, &rep)
	}

	watermark := today
	if tmpl.LastGeneratedDate != nil && tmpl.LastGeneratedDate.After(watermark) {
		watermark = *tmpl.LastGeneratedDate
	}
	if err := g.templates.UpdateLastGenerated(ctx, tmpl.ID, watermark); err != nil {
		rep.WatermarkFailures++
		metrics.RecurringFailures.WithLabelValues("watermark").Inc()
		log.Error().Err(err).Str("watermark", watermark.String()).Msg("failed to advance last generated date")
	}

	if rep.Generated > 0 {
		log.Info().Int("generated", rep.Generated).Msg("generated recurring transactions")
	}
	return rep
}

func (g *Generator) materialize(ctx context.Context, log zerolog.Logger, tmpl domain.RecurringTemplate, occ civil.Date, rep *Report) {
	txn := occurrence(tmpl, occ, g.now())

	exists, err := g.txns.OccurrenceExists(ctx, txn.Key())
	if err != nil {
		rep.Failed++
		metrics.RecurringFailures.WithLabelValues("check").Inc()
		log.Error().Err(err).Str("occurrence", occ.String()).Msg("failed to check for existing transaction")
		return
	}
	if exists {
		rep.Duplicates++
		metrics.RecurringDuplicates.Inc()
		return
	}

	if err := g.txns.InsertTransaction(ctx, &txn); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			rep.Duplicates++
			metrics.RecurringDuplicates.Inc()
			log.Warn().Str("occurrence", occ.String()).Msg("occurrence inserted concurrently, skipping")
			return
		}
		rep.Failed++
		metrics.RecurringFailures.WithLabelValues("insert").Inc()
		log.Error().Err(err).Str("occurrence", occ.String()).Msg("failed to insert generated transaction")
		return
	}

	rep.Generated++
	metrics.RecurringGenerated.Inc()
}

func occurrence(tmpl domain.RecurringTemplate, due civil.Date, now time.Time) domain.Transaction {
	templateID := tmpl.ID
	return domain.Transaction{
		CompanyID:              tmpl.CompanyID,
		ChartAccountID:         tmpl.ChartAccountID,
		BankAccountID:          tmpl.BankAccountID,
		ContactID:              tmpl.ContactID,
		RecurringTransactionID: &templateID,
		TransactionType:        tmpl.TransactionType,
		Description:            tmpl.Description,
		Amount:                 tmpl.Amount,
		DueDate:                due,
		Status:                 tmpl.GeneratedStatus(),
		PaymentMethod:          tmpl.PaymentMethod,
		CreatedAt:              now,
	}
}
