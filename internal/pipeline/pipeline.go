// Package pipeline drives one outreach run: discover postings and persist
// them as pending rows (phase 1), then walk the pending rows through
// filter, dedup, composition and delivery to a terminal status (phase 2).
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"outreach-engine/internal/compose"
	"outreach-engine/internal/dedup"
	"outreach-engine/internal/discover"
	"outreach-engine/internal/domain"
	"outreach-engine/internal/filter"
	"outreach-engine/internal/mail"
	"outreach-engine/internal/pace"
	"outreach-engine/internal/report"
	"outreach-engine/internal/store"
)

// Orchestrator owns the run lifecycle and the pending→terminal row
// transition. Collaborators are injected; a run is a function of
// (config, store snapshot, now) with no process-wide state.
type Orchestrator struct {
	Log       *zap.SugaredLogger
	Store     store.Storage
	Sources   []discover.Source
	Composer  compose.Composer
	Transport mail.Transport
	Filter    *filter.Engine
	Pacer     *pace.Pacer
	Reporter  *report.Reporter

	Profile    compose.Profile
	Attachment string // optional resume path sent with each message

	Mode        string
	SearchTerms []string
	Locations   []string
	Concurrency int
	UnitTimeout time.Duration

	DomainCooldownDays  int
	CompanyCooldownDays int

	DryRun      bool
	WeekendSkip bool

	// Now is the run clock; defaults to time.Now. Dedup decisions use one
	// fixed reading so the cooldown boundary is stable across the batch.
	Now func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run executes both phases and finalizes the report. The returned error
// is non-nil only for aborts: phase-1 persistence failure or a store that
// cannot be read. Per-row failures are bookkeeping, not errors.
func (o *Orchestrator) Run(ctx context.Context) (domain.RunStats, error) {
	runNow := o.now()
	stats := domain.RunStats{
		RunID:     uuid.NewString(),
		Mode:      o.Mode,
		StartedAt: runNow,
	}

	if o.WeekendSkip && isWeekend(runNow) {
		o.Log.Infow("weekend, skipping run", "run_id", stats.RunID)
		stats.Note = domain.NoteSkippedWeekend
		o.finish(&stats)
		return stats, nil
	}

	contacts, err := o.Store.ListContacts(ctx, time.Time{})
	if err != nil {
		stats.Errors = append(stats.Errors, err.Error())
		o.finish(&stats)
		return stats, err
	}
	eng := dedup.New(contacts, o.DomainCooldownDays, o.CompanyCooldownDays)

	if err := o.discoverAndPersist(ctx, &stats); err != nil {
		o.finish(&stats)
		return stats, err
	}

	if err := o.processPending(ctx, eng, runNow, &stats); err != nil {
		o.finish(&stats)
		return stats, err
	}

	o.finish(&stats)
	return stats, nil
}

func (o *Orchestrator) finish(stats *domain.RunStats) {
	stats.EndedAt = o.now()

	// finalize on a fresh context: a cancelled run still records that it
	// was cancelled
	fctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	o.Reporter.Finalize(fctx, *stats)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
